package unitrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Props) error { return nil }

func TestLifecycle_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bundle  *Lifecycle
		wantErr string
	}{
		{name: "nil bundle", bundle: nil, wantErr: "does not export anything"},
		{name: "missing mount", bundle: &Lifecycle{Unmount: Hooks(noop)}, wantErr: "mount function"},
		{name: "missing unmount", bundle: &Lifecycle{Mount: Hooks(noop)}, wantErr: "unmount function"},
		{name: "nil hook entry", bundle: &Lifecycle{Mount: Hooks(noop), Unmount: Hooks(noop), Bootstrap: Hooks(noop, nil)}, wantErr: "bootstrap hook 1 is nil"},
		{name: "minimal", bundle: &Lifecycle{Mount: Hooks(noop), Unmount: Hooks(noop)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.bundle.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidBundle)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLifecycle_CloneIsIndependent(t *testing.T) {
	t.Parallel()
	var calls callLog
	orig := calls.bundle("u")
	c := orig.clone()

	orig.Mount[0] = nil
	orig.Unmount = append(orig.Unmount, noop)

	require.Len(t, c.Mount, 1)
	assert.NotNil(t, c.Mount[0])
	assert.Len(t, c.Unmount, 1)
}

func TestLifecycle_Hooks(t *testing.T) {
	t.Parallel()
	var calls callLog
	l := calls.bundle("u")

	for _, phase := range []Phase{PhaseBootstrap, PhaseMount, PhaseUnmount, PhaseUnload, PhaseUpdate} {
		assert.Len(t, l.hooks(phase), 1, phase)
	}
	assert.Nil(t, l.hooks(PhaseLoad))

	var nilBundle *Lifecycle
	assert.Nil(t, nilBundle.hooks(PhaseMount))
}

func TestStatic(t *testing.T) {
	t.Parallel()
	l := &Lifecycle{Mount: Hooks(noop), Unmount: Hooks(noop)}
	got, err := Static(l)(context.Background(), Props{})
	require.NoError(t, err)
	assert.Same(t, l, got)
}
