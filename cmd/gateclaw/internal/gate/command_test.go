package gate

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/gateclaw/pkg/dialog"
)

type fakeGate struct {
	calls []string
	err   error
}

func (g *fakeGate) record(name string) (string, error) {
	g.calls = append(g.calls, name)
	if g.err != nil {
		return "", g.err
	}
	return "SM" + name, nil
}

func (g *fakeGate) OpenGates(context.Context) (string, error)    { return g.record("open") }
func (g *fakeGate) CloseGates(context.Context) (string, error)   { return g.record("close") }
func (g *fakeGate) LatchGates(context.Context) (string, error)   { return g.record("latch") }
func (g *fakeGate) CheckBalance(context.Context) (string, error) { return g.record("balance") }

func useFakeGate(t *testing.T, g *fakeGate) {
	t.Helper()
	orig := operatorFactory
	operatorFactory = func() (dialog.GateOperator, func(), error) {
		return g, func() {}, nil
	}
	t.Cleanup(func() { operatorFactory = orig })
}

func TestNewGateCommand(t *testing.T) {
	cmd := NewGateCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "gate", cmd.Use)
	assert.True(t, cmd.HasSubCommands())
	assert.Nil(t, cmd.RunE)

	for _, name := range []string{"open", "close", "latch", "balance"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Use)
		assert.NotNil(t, sub.RunE)
	}
}

func TestGateSubcommands(t *testing.T) {
	for _, name := range []string{"open", "close", "latch", "balance"} {
		t.Run(name, func(t *testing.T) {
			g := &fakeGate{}
			useFakeGate(t, g)

			var out bytes.Buffer
			cmd := NewGateCommand()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{name})
			require.NoError(t, cmd.Execute())

			assert.Equal(t, []string{name}, g.calls)
			assert.Contains(t, out.String(), "message SM"+name)
		})
	}
}

func TestGateSubcommand_Error(t *testing.T) {
	useFakeGate(t, &fakeGate{err: errors.New("carrier down")})

	cmd := NewGateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"open"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier down")
}
