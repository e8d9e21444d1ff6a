package fragment

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFrame создает кадр с узнаваемым содержимым
func testFrame(size int, seed byte) []byte {
	frame := make([]byte, size)
	for i := range frame {
		frame[i] = byte(i) ^ seed
	}
	return frame
}

// fakeClock ручные часы для проверки простоя слотов
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAssembler(mode Mode) (*Assembler, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	asm := NewAssembler(Options{Mode: mode, StaleAfter: DefaultStaleAfter, Now: clock.Now})
	return asm, clock
}

func TestAssemblerCompleteFrame(t *testing.T) {
	const expected = 320 * 240 * 2

	tests := []struct {
		name    string
		mode    Mode
		shuffle bool
	}{
		{"по порядку, поколения", ModeGenerational, false},
		{"вразнобой, поколения", ModeGenerational, true},
		{"по порядку, слияние", ModeLegacyMerge, false},
		{"вразнобой, слияние", ModeLegacyMerge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm, _ := newTestAssembler(tt.mode)
			frame := testFrame(expected, 0x5a)

			datagrams, err := Split(7, frame, 0)
			require.NoError(t, err)
			require.Len(t, datagrams, 105)

			if tt.shuffle {
				r := rand.New(rand.NewSource(42))
				r.Shuffle(len(datagrams), func(i, j int) {
					datagrams[i], datagrams[j] = datagrams[j], datagrams[i]
				})
			}

			for i, dg := range datagrams {
				res := asm.Add(dg, expected)
				if i < len(datagrams)-1 {
					require.Equal(t, OutcomePending, res.Outcome, "фрагмент %d", i)
					continue
				}
				require.Equal(t, OutcomeComplete, res.Outcome)
				assert.Equal(t, uint8(7), res.FrameID)
				assert.True(t, bytes.Equal(frame, res.Data), "кадр должен совпадать с исходным")
			}

			assert.Equal(t, 0, asm.Pending(), "слот должен быть освобожден")
		})
	}
}

func TestAssemblerMissingFragmentNeverCompletes(t *testing.T) {
	const expected = 160 * 120 * 2
	frame := testFrame(expected, 1)

	datagrams, err := Split(3, frame, 0)
	require.NoError(t, err)

	for missing := range datagrams {
		asm, _ := newTestAssembler(ModeGenerational)
		for i, dg := range datagrams {
			if i == missing {
				continue
			}
			res := asm.Add(dg, expected)
			assert.NotEqual(t, OutcomeComplete, res.Outcome, "пропущен фрагмент %d", missing)
		}
		assert.Equal(t, 1, asm.Pending())
	}
}

func TestAssemblerDuplicateDoesNotAdvanceCompletion(t *testing.T) {
	for _, mode := range []Mode{ModeGenerational, ModeLegacyMerge} {
		t.Run(mode.String(), func(t *testing.T) {
			asm, _ := newTestAssembler(mode)
			frame := testFrame(3000, 9)

			datagrams, err := Split(1, frame, 1000)
			require.NoError(t, err)
			require.Len(t, datagrams, 3)

			assert.Equal(t, OutcomePending, asm.Add(datagrams[0], 3000).Outcome)
			assert.Equal(t, OutcomePending, asm.Add(datagrams[0], 3000).Outcome)
			assert.Equal(t, OutcomePending, asm.Add(datagrams[1], 3000).Outcome)

			res := asm.Add(datagrams[2], 3000)
			require.Equal(t, OutcomeComplete, res.Outcome)
			assert.Equal(t, frame, res.Data)
		})
	}
}

func TestAssemblerDuplicateLastWriteWins(t *testing.T) {
	asm, _ := newTestAssembler(ModeGenerational)

	first := Header{FrameID: 2, FragmentID: 0, TotalFragments: 2}.AppendTo(nil)
	first = append(first, 'a', 'a')
	second := Header{FrameID: 2, FragmentID: 0, TotalFragments: 2}.AppendTo(nil)
	second = append(second, 'b', 'b')
	tail := Header{FrameID: 2, FragmentID: 1, TotalFragments: 2, Reserved: LastFragmentFlag}.AppendTo(nil)
	tail = append(tail, 'c', 'c')

	asm.Add(first, 4)
	asm.Add(second, 4)
	res := asm.Add(tail, 4)

	require.Equal(t, OutcomeComplete, res.Outcome)
	assert.Equal(t, []byte("bbcc"), res.Data)
}

func TestAssemblerSizeMismatchDropsFrame(t *testing.T) {
	asm, _ := newTestAssembler(ModeGenerational)
	frame := testFrame(2000, 3)

	datagrams, err := Split(4, frame, 1000)
	require.NoError(t, err)

	asm.Add(datagrams[0], 4000)
	res := asm.Add(datagrams[1], 4000)

	assert.Equal(t, OutcomeMismatch, res.Outcome)
	assert.Nil(t, res.Data)
	assert.Equal(t, 0, asm.Pending(), "слот освобождается и при несовпадении размера")

	// Повторная доставка не должна собрать кадр из остатков
	res = asm.Add(datagrams[1], 4000)
	assert.Equal(t, OutcomePending, res.Outcome)
}

func TestAssemblerIgnoresShortDatagrams(t *testing.T) {
	asm, _ := newTestAssembler(ModeGenerational)

	for _, dg := range [][]byte{nil, {}, {1}, {1, 2, 3}, {1, 0, 1, 0}} {
		res := asm.Add(dg, 10)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	}
	assert.Equal(t, 0, asm.Pending())
}

func TestAssemblerFrameIDReuse(t *testing.T) {
	old := testFrame(3000, 0x11)
	fresh := testFrame(2000, 0x22)

	oldDatagrams, err := Split(9, old, 1000)
	require.NoError(t, err)
	freshDatagrams, err := Split(9, fresh, 1000)
	require.NoError(t, err)

	t.Run("поколения: смена total начинает новый кадр", func(t *testing.T) {
		asm, _ := newTestAssembler(ModeGenerational)

		asm.Add(oldDatagrams[0], 2000)
		asm.Add(oldDatagrams[2], 2000)
		gen := asm.Generation(9)

		res := asm.Add(freshDatagrams[0], 2000)
		assert.True(t, res.Superseded)
		assert.Equal(t, gen+1, asm.Generation(9))

		res = asm.Add(freshDatagrams[1], 2000)
		require.Equal(t, OutcomeComplete, res.Outcome)
		assert.Equal(t, fresh, res.Data)
	})

	t.Run("поколения: простой слота начинает новый кадр", func(t *testing.T) {
		asm, clock := newTestAssembler(ModeGenerational)
		stale := testFrame(3000, 0x33)
		staleDatagrams, err := Split(9, stale, 1000)
		require.NoError(t, err)

		asm.Add(staleDatagrams[0], 3000)
		asm.Add(staleDatagrams[1], 3000)

		clock.Advance(DefaultStaleAfter + time.Millisecond)

		next := testFrame(3000, 0x44)
		nextDatagrams, err := Split(9, next, 1000)
		require.NoError(t, err)

		res := asm.Add(nextDatagrams[2], 3000)
		assert.True(t, res.Superseded)
		assert.Equal(t, OutcomePending, res.Outcome, "старые фрагменты не должны завершить новый кадр")

		asm.Add(nextDatagrams[0], 3000)
		res = asm.Add(nextDatagrams[1], 3000)
		require.Equal(t, OutcomeComplete, res.Outcome)
		assert.Equal(t, next, res.Data)
	})

	t.Run("слияние: фрагменты двух кадров смешиваются", func(t *testing.T) {
		asm, clock := newTestAssembler(ModeLegacyMerge)
		prev := testFrame(2000, 0x55)
		prevDatagrams, err := Split(9, prev, 1000)
		require.NoError(t, err)

		asm.Add(prevDatagrams[0], 2000)
		clock.Advance(time.Hour)

		res := asm.Add(freshDatagrams[1], 2000)
		require.Equal(t, OutcomeComplete, res.Outcome)
		assert.False(t, res.Superseded)
		assert.Equal(t, append(append([]byte{}, prev[:1000]...), fresh[1000:]...), res.Data)
	})

	t.Run("слияние: total перезаписывается последним фрагментом", func(t *testing.T) {
		asm, _ := newTestAssembler(ModeLegacyMerge)

		asm.Add(oldDatagrams[0], 2000)
		asm.Add(oldDatagrams[2], 2000)

		// total стал 2, различных fragment_id уже 2, но фрагмента 1 нет
		res := asm.Add(freshDatagrams[0], 2000)
		assert.Equal(t, OutcomeMismatch, res.Outcome)
		assert.Equal(t, 0, asm.Pending())
	})
}

func TestAssemblerReset(t *testing.T) {
	asm, _ := newTestAssembler(ModeGenerational)
	datagrams, err := Split(0, testFrame(3000, 0), 1000)
	require.NoError(t, err)

	asm.Add(datagrams[0], 3000)
	asm.Add(datagrams[1], 3000)
	require.Equal(t, 1, asm.Pending())

	asm.Reset()
	assert.Equal(t, 0, asm.Pending())
	assert.Equal(t, OutcomePending, asm.Add(datagrams[2], 3000).Outcome)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeGenerational, mode)

	mode, err = ParseMode("Legacy-Merge")
	require.NoError(t, err)
	assert.Equal(t, ModeLegacyMerge, mode)

	_, err = ParseMode("fifo")
	assert.Error(t, err)
}
