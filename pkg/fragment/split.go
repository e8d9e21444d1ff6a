package fragment

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFrame кадр без данных нельзя передать
	ErrEmptyFrame = errors.New("пустой кадр")
	// ErrTooManyFragments кадр не помещается в 255 фрагментов
	ErrTooManyFragments = errors.New("кадр требует больше 255 фрагментов")
)

// Split разбивает кадр на датаграммы так же, как это делает прошивка сенсора:
// фрагменты идут по порядку, последний помечен LastFragmentFlag.
// payloadSize <= 0 означает MaxPayloadSize.
func Split(frameID uint8, frame []byte, payloadSize int) ([][]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	if payloadSize <= 0 {
		payloadSize = MaxPayloadSize
	}
	if payloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("размер payload %d превышает максимум %d", payloadSize, MaxPayloadSize)
	}

	total := (len(frame) + payloadSize - 1) / payloadSize
	if total > MaxFragments {
		return nil, fmt.Errorf("%w: %d байт при payload %d", ErrTooManyFragments, len(frame), payloadSize)
	}

	datagrams := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(frame) {
			end = len(frame)
		}

		h := Header{
			FrameID:        frameID,
			FragmentID:     uint8(i),
			TotalFragments: uint8(total),
		}
		if i == total-1 {
			h.Reserved = LastFragmentFlag
		}

		dg := make([]byte, 0, HeaderSize+end-start)
		dg = h.AppendTo(dg)
		dg = append(dg, frame[start:end]...)
		datagrams = append(datagrams, dg)
	}
	return datagrams, nil
}

// FragmentCount возвращает количество фрагментов для кадра заданного размера
func FragmentCount(frameSize, payloadSize int) int {
	if payloadSize <= 0 {
		payloadSize = MaxPayloadSize
	}
	return (frameSize + payloadSize - 1) / payloadSize
}
