package benchmarkerrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"ErrTransient":              {&ErrTransient{Op: "poll", Message: "timeout"}, true},
		"wrapped ErrTransient":      {errors.WithMessage(&ErrTransient{Op: "submit"}, "foo"), true},
		"ErrTransient with cause":   {errors.WithStack(&ErrTransient{Op: "submit", Cause: errors.New("conn reset")}), true},
		"ErrSubmission":             {&ErrSubmission{Workflow: "wf", Message: "bad params"}, false},
		"plain error":               {errors.New("foo"), false},
		"nil":                       {nil, false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestIsConfigError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"ErrInvalidArgument":          {&ErrInvalidArgument{Name: "repetitions", Value: 0}, true},
		"ErrNotFound":                 {&ErrNotFound{Type: "destination", Value: "missing"}, true},
		"ErrAlreadyExists":            {&ErrAlreadyExists{Type: "destination", Value: "dup"}, true},
		"wrapped ErrInvalidArgument":  {errors.WithMessage(&ErrInvalidArgument{}, "foo"), true},
		"ErrTransient":                {&ErrTransient{Op: "submit"}, false},
		"plain error":                 {errors.New("foo"), false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsConfigError(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(
		t,
		`resource "local" of type "destination" already exists`,
		(&ErrAlreadyExists{Type: "destination", Value: "local"}).Error(),
	)
	assert.Equal(
		t,
		`resource "local" of type "destination" does not exist; not registered`,
		(&ErrNotFound{Type: "destination", Value: "local", Message: "not registered"}).Error(),
	)
	assert.Equal(
		t,
		`value '\x00' is invalid for field "maxConcurrentRuns"; must be positive`,
		(&ErrInvalidArgument{Name: "maxConcurrentRuns", Value: 0, Message: "must be positive"}).Error(),
	)
}
