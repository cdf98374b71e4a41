package clockx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_Advance(t *testing.T) {
	start := time.Unix(1700000000, 0)
	fake := NewFake(start)
	assert.Equal(t, start, fake.Now())

	early := fake.After(10 * time.Second)
	late := fake.After(30 * time.Second)
	assert.Equal(t, 2, fake.Armed())

	fake.Advance(15 * time.Second)
	select {
	case at := <-early:
		assert.Equal(t, start.Add(15*time.Second), at)
	default:
		t.Fatal("expired timer did not fire")
	}
	select {
	case <-late:
		t.Fatal("timer fired before its deadline")
	default:
	}
	assert.Equal(t, 1, fake.Armed())

	fake.Advance(15 * time.Second)
	select {
	case <-late:
	default:
		t.Fatal("expired timer did not fire")
	}
	assert.Zero(t, fake.Armed())
}

func TestFake_AfterNonPositive(t *testing.T) {
	fake := NewFake(time.Unix(1700000000, 0))
	ch := fake.After(0)
	require.Len(t, ch, 1, "non-positive durations fire immediately")
	assert.Zero(t, fake.Armed())
}
