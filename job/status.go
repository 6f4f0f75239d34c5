package job

import "encoding/json"

// Status is the polling view of a job.
type Status struct {
	TaskID string          `json:"task_id"`
	State  State           `json:"status"`
	Ready  bool            `json:"ready"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusOf projects a job into its status view. The result is only
// exposed on SUCCESS, the error only on FAILURE.
func StatusOf(j *Job) *Status {
	st := &Status{
		TaskID: j.ID.String(),
		State:  j.State,
		Ready:  j.State.Terminal(),
	}
	switch j.State {
	case StateSuccess:
		if len(j.Result) > 0 {
			st.Result = json.RawMessage(j.Result)
		} else {
			st.Result = json.RawMessage("null")
		}
	case StateFailure:
		st.Error = j.LastError
	}
	return st
}

// PendingStatus is reported for a well-formed id the store has no record
// of: it may not have been written yet, or its result may have expired.
func PendingStatus(taskID string) *Status {
	return &Status{TaskID: taskID, State: StatePending}
}

// UnknownStatus is reported for ids this system could not have issued.
func UnknownStatus(taskID string) *Status {
	return &Status{TaskID: taskID, State: StateUnknown}
}

// Decode unmarshals the result of a successful job into v.
func (s *Status) Decode(v any) error {
	if len(s.Result) == 0 {
		return nil
	}
	return json.Unmarshal(s.Result, v)
}
