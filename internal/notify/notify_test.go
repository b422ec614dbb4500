package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/pursloader/internal/foundation/errors"
)

type fakeConn struct {
	subject    string
	data       []byte
	publishErr error
	flushErr   error
	closed     bool
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.subject, f.data = subj, data
	return f.publishErr
}

func (f *fakeConn) FlushWithContext(context.Context) error { return f.flushErr }
func (f *fakeConn) Close()                                 { f.closed = true }

func TestPublish(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "pursloader.cycles")

	err := p.Publish(t.Context(), Summary{
		Generation: "g1",
		Mode:       "batch",
		Modules:    []string{"Main"},
		Resolved:   1,
		Warnings:   []string{"w"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pursloader.cycles", fc.subject)

	var got Summary
	require.NoError(t, json.Unmarshal(fc.data, &got))
	assert.Equal(t, "g1", got.Generation)
	assert.Equal(t, []string{"Main"}, got.Modules)
	assert.False(t, got.Timestamp.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, fc.closed)
}

func TestPublishErrors(t *testing.T) {
	p := newPublisher(&fakeConn{publishErr: errors.New("down")}, "s")
	err := p.Publish(t.Context(), Summary{})
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryNotify, ferrors.GetCategory(err))

	p = newPublisher(&fakeConn{flushErr: errors.New("timeout")}, "s")
	assert.Error(t, p.Publish(t.Context(), Summary{}))
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "s")
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryNotify, ferrors.GetCategory(err))
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.Publish(t.Context(), Summary{}))
	assert.NoError(t, n.Close())
}
