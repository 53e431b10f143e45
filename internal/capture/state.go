// Package capture implements the voice-to-lead capture pipeline: microphone
// permission and acquisition, the recording session, streaming transcription,
// entity extraction, and the validation phase, all sequenced by a single
// top-level state machine ([Machine]).
//
// The pipeline supports exactly one active capture at a time. A second
// capture attempt while one is in flight is rejected, never queued.
package capture

// Phase is the top-level pipeline state. Exactly one phase is active at a
// time; the pause flag during recording is tracked separately on [Machine].
type Phase int

const (
	// PhaseIdle means no capture is in progress.
	PhaseIdle Phase = iota

	// PhasePermissionPrompt means the microphone permission probe is
	// outstanding.
	PhasePermissionPrompt

	// PhaseRecording means the microphone is live and audio is streaming to
	// the transcriber.
	PhaseRecording

	// PhaseProcessing means recording has stopped and the final transcript
	// is being flushed from the transcriber.
	PhaseProcessing

	// PhaseExtracting means the transcript is being turned into structured
	// lead fields.
	PhaseExtracting

	// PhaseValidation means extracted fields are presented for human review
	// and correction.
	PhaseValidation

	// PhaseComplete means the lead was committed; the machine lingers here
	// briefly before returning to idle.
	PhaseComplete
)

// String returns the snake_case phase name used in logs and metric
// attributes.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePermissionPrompt:
		return "permission_prompt"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhaseExtracting:
		return "extracting"
	case PhaseValidation:
		return "validation"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// Event is a state machine input. External events come from the user (or the
// UI acting for them); internal events are raised by the machine itself when
// an async pipeline stage finishes.
type Event int

const (
	// EventRequestCapture starts a new capture from idle.
	EventRequestCapture Event = iota

	// EventGranted reports that the permission probe succeeded.
	EventGranted

	// EventDenied reports that the permission probe was refused.
	EventDenied

	// EventPause suspends audio forwarding while recording.
	EventPause

	// EventResume lifts a pause.
	EventResume

	// EventStop ends recording and moves to transcript finalisation.
	EventStop

	// EventTranscriptReady reports that the final transcript is available.
	EventTranscriptReady

	// EventEntitiesReady reports that extraction produced an entity set.
	EventEntitiesReady

	// EventCancel abandons the capture and discards all session state.
	EventCancel

	// EventSave commits the validated lead.
	EventSave

	// EventAddMore returns to recording while keeping the extracted
	// entities for an additive second pass.
	EventAddMore

	// EventLingerElapsed fires when the post-commit display delay ends.
	EventLingerElapsed

	// EventFail reports an unrecoverable pipeline error in the active phase.
	EventFail
)

// String returns the event name used in logs.
func (e Event) String() string {
	switch e {
	case EventRequestCapture:
		return "request_capture"
	case EventGranted:
		return "granted"
	case EventDenied:
		return "denied"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventTranscriptReady:
		return "transcript_ready"
	case EventEntitiesReady:
		return "entities_ready"
	case EventCancel:
		return "cancel"
	case EventSave:
		return "save"
	case EventAddMore:
		return "add_more"
	case EventLingerElapsed:
		return "linger_elapsed"
	case EventFail:
		return "fail"
	}
	return "unknown"
}

// transition is the pure phase transition table. It returns the next phase
// and whether the event is legal in the current phase. Illegal events leave
// the phase unchanged; callers log and ignore them, they never panic.
func transition(p Phase, e Event) (Phase, bool) {
	switch p {
	case PhaseIdle:
		if e == EventRequestCapture {
			return PhasePermissionPrompt, true
		}
	case PhasePermissionPrompt:
		switch e {
		case EventGranted:
			return PhaseRecording, true
		case EventDenied, EventCancel:
			return PhaseIdle, true
		}
	case PhaseRecording:
		switch e {
		case EventPause, EventResume:
			return PhaseRecording, true
		case EventStop:
			return PhaseProcessing, true
		case EventCancel, EventFail:
			return PhaseIdle, true
		}
	case PhaseProcessing:
		switch e {
		case EventTranscriptReady:
			return PhaseExtracting, true
		case EventCancel, EventFail:
			return PhaseIdle, true
		}
	case PhaseExtracting:
		switch e {
		case EventEntitiesReady:
			return PhaseValidation, true
		case EventCancel, EventFail:
			return PhaseIdle, true
		}
	case PhaseValidation:
		switch e {
		case EventSave:
			return PhaseComplete, true
		case EventAddMore:
			return PhaseRecording, true
		case EventCancel:
			return PhaseIdle, true
		}
	case PhaseComplete:
		if e == EventLingerElapsed {
			return PhaseIdle, true
		}
	}
	return p, false
}
