// Package enrollment implements the sequence-enrollment workflow: it
// advances one contact through a multi-step outreach sequence, one step
// per continuation cycle, so per-instance state stays constant no
// matter how many steps the sequence has.
package enrollment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/outfield-crm/outfield/pkg/activity"
	"github.com/outfield-crm/outfield/pkg/engine"
	"github.com/outfield-crm/outfield/pkg/models"
)

// Workflow phases. Each cycle runs load → (sleep → reply check) →
// execute → advance, then continues as new for the next step.
const (
	PhaseLoading       = "loading"
	PhaseSleeping      = "sleeping"
	PhaseCheckingReply = "checking_reply"
	PhaseExecuting     = "executing"
	PhaseAdvancing     = "advancing"
)

const sleepReasonStepDelay = "step-delay"

// WorkflowID returns the deterministic instance ID for an enrollment.
func WorkflowID(enrollmentID string) string {
	return "enrollment-" + enrollmentID
}

// Input starts (or continues) one enrollment workflow. The enrollment
// record is the durable index; the input carries its ID only.
type Input struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
}

// state is the per-cycle workflow state. It is reset on every
// continuation, which is what bounds it to one step's worth of data.
type state struct {
	EnrollmentID string   `json:"enrollment_id"`
	Step         stepInfo `json:"step"`
}

// stepInfo is the snapshot of the current step captured by the load
// activity. Decisions replay against this snapshot, not live data.
type stepInfo struct {
	Number     int                     `json:"number"`
	Type       models.SequenceStepType `json:"type"`
	Enabled    bool                    `json:"enabled"`
	Subject    string                  `json:"subject,omitempty"`
	Body       string                  `json:"body,omitempty"`
	DelayDays  int                     `json:"delay_days"`
	DelayHours int                     `json:"delay_hours"`
}

// Delay returns the configured wait before the step executes.
func (s stepInfo) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Definition is the sequence-enrollment workflow definition.
type Definition struct{}

// NewDefinition creates the sequence-enrollment workflow definition.
func NewDefinition() *Definition {
	return &Definition{}
}

func (d *Definition) Type() models.DefinitionType {
	return models.DefinitionSequenceEnrollment
}

// Decide runs one step of the enrollment cycle per wake-up.
func (d *Definition) Decide(ctx context.Context, dctx *engine.DecisionContext) (engine.Decision, error) {
	var st state

	if err := dctx.State(&st); err != nil {
		return nil, err
	}

	if dctx.Instance.Phase == "" {
		var input Input

		if err := dctx.Input(&input); err != nil {
			return nil, err
		}

		st.EnrollmentID = input.EnrollmentID
		dctx.Instance.Phase = PhaseLoading

		if err := dctx.SetState(&st); err != nil {
			return nil, err
		}

		return engine.RunActivity{
			Name:  ActivityLoad,
			Input: loadInput{EnrollmentID: st.EnrollmentID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	switch dctx.Instance.Phase {
	case PhaseLoading:
		return d.decideLoading(dctx, &st)
	case PhaseSleeping:
		return d.decideSleeping(dctx, &st)
	case PhaseCheckingReply:
		return d.decideCheckingReply(dctx, &st)
	case PhaseExecuting:
		return d.decideExecuting(dctx, &st)
	case PhaseAdvancing:
		return d.decideAdvancing(dctx, &st)
	default:
		return nil, fmt.Errorf("unknown enrollment phase %q", dctx.Instance.Phase)
	}
}

func (d *Definition) decideLoading(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind != engine.ResumeActivity {
		// Recovery wake-up, the recorded attempt replays the result.
		return engine.RunActivity{
			Name:  ActivityLoad,
			Input: loadInput{EnrollmentID: st.EnrollmentID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	if dctx.Resume.ActivityError != nil {
		return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
	}

	var loaded loadResult
	if err := json.Unmarshal(dctx.Resume.ActivityResult, &loaded); err != nil {
		return nil, fmt.Errorf("failed to decode load result: %w", err)
	}

	// Paused, cancelled, unsubscribed or already terminal enrollments
	// end the workflow without error.
	if !loaded.Active {
		return engine.Complete{}, nil
	}

	// No step configured at the cursor: the advance activity marks the
	// enrollment Completed.
	if !loaded.StepFound {
		dctx.Instance.Phase = PhaseAdvancing

		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.RunActivity{
			Name:  ActivityAdvance,
			Input: advanceInput{EnrollmentID: st.EnrollmentID, NoStep: true},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	st.Step = loaded.Step

	// Disabled steps advance immediately, no delay, no execution.
	if !loaded.Step.Enabled {
		dctx.Instance.Phase = PhaseAdvancing

		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.RunActivity{
			Name:  ActivityAdvance,
			Input: advanceInput{EnrollmentID: st.EnrollmentID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	delay := loaded.Step.Delay()

	// The very first step executes immediately regardless of its
	// configured delay.
	if delay > 0 && !loaded.FirstStep {
		dctx.Instance.Phase = PhaseSleeping

		if err := dctx.SetState(st); err != nil {
			return nil, err
		}

		return engine.Sleep{Until: dctx.Now.Add(delay), Reason: sleepReasonStepDelay}, nil
	}

	return d.executeStep(dctx, st)
}

func (d *Definition) decideSleeping(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	// Status and replies may have changed during the sleep; the check
	// activity is the authoritative source for both.
	dctx.Instance.Phase = PhaseCheckingReply

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name:  ActivityCheckReply,
		Input: checkReplyInput{EnrollmentID: st.EnrollmentID},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

func (d *Definition) decideCheckingReply(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind != engine.ResumeActivity {
		return engine.RunActivity{
			Name:  ActivityCheckReply,
			Input: checkReplyInput{EnrollmentID: st.EnrollmentID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	if dctx.Resume.ActivityError != nil {
		return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
	}

	var check checkReplyResult
	if err := json.Unmarshal(dctx.Resume.ActivityResult, &check); err != nil {
		return nil, fmt.Errorf("failed to decode reply-check result: %w", err)
	}

	// A detected reply already flipped the enrollment to Replied.
	if check.Replied || !check.Active {
		return engine.Complete{}, nil
	}

	return d.executeStep(dctx, st)
}

func (d *Definition) decideExecuting(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind != engine.ResumeActivity {
		return d.executeStep(dctx, st)
	}

	if dctx.Resume.ActivityError != nil {
		return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
	}

	if st.Step.Type == models.StepTypeEmail {
		var sent sendEmailResult
		if err := json.Unmarshal(dctx.Resume.ActivityResult, &sent); err != nil {
			return nil, fmt.Errorf("failed to decode send result: %w", err)
		}

		// A hard bounce already marked the enrollment Bounced; the
		// workflow ends without executing further steps.
		if sent.Bounced {
			return engine.Complete{}, nil
		}
	}

	dctx.Instance.Phase = PhaseAdvancing

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	return engine.RunActivity{
		Name:  ActivityAdvance,
		Input: advanceInput{EnrollmentID: st.EnrollmentID},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}

func (d *Definition) decideAdvancing(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	if dctx.Resume.Kind != engine.ResumeActivity {
		return engine.RunActivity{
			Name:  ActivityAdvance,
			Input: advanceInput{EnrollmentID: st.EnrollmentID},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	if dctx.Resume.ActivityError != nil {
		return engine.Fail{Reason: dctx.Resume.ActivityError.Error()}, nil
	}

	var advanced advanceResult
	if err := json.Unmarshal(dctx.Resume.ActivityResult, &advanced); err != nil {
		return nil, fmt.Errorf("failed to decode advance result: %w", err)
	}

	if advanced.Completed {
		return engine.Complete{}, nil
	}

	// Restart the cycle fresh for the next step so history stays O(1).
	return engine.ContinueAsNew{Input: Input{EnrollmentID: st.EnrollmentID}}, nil
}

// executeStep issues the activity matching the step type. Only EMAIL
// produces an external send; the remaining types record an audit event
// for manual follow-through.
func (d *Definition) executeStep(dctx *engine.DecisionContext, st *state) (engine.Decision, error) {
	dctx.Instance.Phase = PhaseExecuting

	if err := dctx.SetState(st); err != nil {
		return nil, err
	}

	if st.Step.Type == models.StepTypeEmail {
		return engine.RunActivity{
			Name: ActivitySendEmail,
			Input: sendEmailInput{
				EnrollmentID: st.EnrollmentID,
				StepNumber:   st.Step.Number,
				Subject:      st.Step.Subject,
				Body:         st.Step.Body,
			},
			Retry: activity.DefaultRetryPolicy(),
		}, nil
	}

	return engine.RunActivity{
		Name: ActivityRecordEvent,
		Input: recordEventInput{
			EnrollmentID: st.EnrollmentID,
			StepNumber:   st.Step.Number,
			StepType:     st.Step.Type,
		},
		Retry: activity.DefaultRetryPolicy(),
	}, nil
}
