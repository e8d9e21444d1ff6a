package fragment

import "fmt"

// Параметры формата фрагмента
const (
	HeaderSize       = 4                            // Размер заголовка фрагмента
	MaxDatagramSize  = 1472                         // Максимальный UDP payload сенсора (MTU 1500 - IP - UDP)
	MaxPayloadSize   = MaxDatagramSize - HeaderSize // Полезная нагрузка одного фрагмента
	MaxFragments     = 255                          // total_fragments хранится в одном байте
	LastFragmentFlag = 0x01                         // Значение reserved в последнем фрагменте
)

// Header заголовок фрагмента видеокадра
type Header struct {
	FrameID        uint8
	FragmentID     uint8
	TotalFragments uint8
	Reserved       uint8
}

// IsLast сообщает, помечен ли фрагмент сенсором как последний в кадре
func (h Header) IsLast() bool {
	return h.Reserved&LastFragmentFlag != 0
}

// String возвращает читаемое представление заголовка
func (h Header) String() string {
	return fmt.Sprintf("frame=%d frag=%d/%d", h.FrameID, h.FragmentID, h.TotalFragments)
}

// AppendTo дописывает заголовок в конец dst
func (h Header) AppendTo(dst []byte) []byte {
	return append(dst, h.FrameID, h.FragmentID, h.TotalFragments, h.Reserved)
}

// Parse разбирает датаграмму на заголовок и полезную нагрузку.
// Датаграммы не длиннее заголовка не несут данных и отвергаются (ok == false).
// Возвращаемый payload ссылается на память datagram.
func Parse(datagram []byte) (h Header, payload []byte, ok bool) {
	if len(datagram) <= HeaderSize {
		return Header{}, nil, false
	}
	h = Header{
		FrameID:        datagram[0],
		FragmentID:     datagram[1],
		TotalFragments: datagram[2],
		Reserved:       datagram[3],
	}
	return h, datagram[HeaderSize:], true
}
