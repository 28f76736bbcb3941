package panel

import (
	"context"
	"testing"

	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SingleActivePanel(t *testing.T) {
	ctx := context.Background()
	built := 0
	closed := 0
	m := NewManager(func(context.Context) (*Controller, error) {
		built++
		f := newFixture(t, rules.EditorWindsurf)
		f.ctrl.onClose = func() error {
			closed++
			return nil
		}
		return f.ctrl, nil
	})

	assert.Nil(t, m.Active())

	first, err := m.Open(ctx)
	require.NoError(t, err)
	second, err := m.Open(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, m.Active())
	assert.Equal(t, 1, built)
	assert.Equal(t, rules.EditorWindsurf, first.EditorType())

	resp, err := first.Send(ctx, Ready{})
	require.NoError(t, err)
	assert.Equal(t, rules.EditorWindsurf, resp.EditorType)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	assert.Equal(t, 1, closed)
	assert.Nil(t, m.Active())

	_, err = first.Send(ctx, Ready{})
	assert.ErrorIs(t, err, ErrClosed)

	third, err := m.Open(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, built)
}

func TestManager_FactoryError(t *testing.T) {
	m := NewManager(func(context.Context) (*Controller, error) {
		return nil, errors.New("boom")
	})

	h, err := m.Open(context.Background())
	assert.Nil(t, h)
	assert.ErrorContains(t, err, "boom")
	assert.Nil(t, m.Active())
}

func TestHandle_CloseError(t *testing.T) {
	m := NewManager(func(context.Context) (*Controller, error) {
		f := newFixture(t, rules.EditorCline)
		return NewController(f.project, f.global, rules.EditorCline, WithOnClose(func() error {
			return errors.New("settings busy")
		})), nil
	})

	h, err := m.Open(context.Background())
	require.NoError(t, err)
	assert.ErrorContains(t, h.Close(), "settings busy")
	assert.Nil(t, m.Active(), "a failed close still releases the panel")
}

func TestNoticeBuffer(t *testing.T) {
	var b NoticeBuffer
	b.Notify(context.Background(), "one")
	b.Notify(context.Background(), "two")
	assert.Equal(t, []string{"one", "two"}, b.Drain())
	assert.Empty(t, b.Drain())
}
