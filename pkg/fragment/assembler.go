package fragment

import (
	"fmt"
	"strings"
	"time"
)

// Mode определяет поведение слота при повторном использовании frame_id
type Mode int

const (
	// ModeGenerational сбрасывает слот при смене total_fragments или простое дольше StaleAfter
	ModeGenerational Mode = iota
	// ModeLegacyMerge сливает фрагменты кадров с одинаковым frame_id (поведение исходного просмотрщика)
	ModeLegacyMerge
)

// String возвращает строковое представление режима
func (m Mode) String() string {
	switch m {
	case ModeGenerational:
		return "generational"
	case ModeLegacyMerge:
		return "legacy-merge"
	default:
		return "unknown"
	}
}

// ParseMode разбирает имя режима из конфигурации
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generational":
		return ModeGenerational, nil
	case "legacy-merge", "legacy":
		return ModeLegacyMerge, nil
	default:
		return 0, fmt.Errorf("неизвестный режим сборки: %q", s)
	}
}

// DefaultStaleAfter время простоя, после которого незавершенный кадр считается потерянным
const DefaultStaleAfter = 500 * time.Millisecond

// Options параметры сборщика
type Options struct {
	Mode Mode
	// StaleAfter применяется только в ModeGenerational. 0 отключает проверку простоя.
	StaleAfter time.Duration
	// Now источник времени, подменяется в тестах
	Now func() time.Time
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		Mode:       ModeGenerational,
		StaleAfter: DefaultStaleAfter,
		Now:        time.Now,
	}
}

// Outcome результат обработки одной датаграммы
type Outcome int

const (
	// OutcomeIgnored датаграмма не длиннее заголовка
	OutcomeIgnored Outcome = iota
	// OutcomePending фрагмент сохранен, кадр еще не собран
	OutcomePending
	// OutcomeComplete кадр собран и имеет ожидаемый размер
	OutcomeComplete
	// OutcomeMismatch все фрагменты получены, но размер кадра не совпал; кадр отброшен
	OutcomeMismatch
)

// String возвращает строковое представление результата
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomePending:
		return "pending"
	case OutcomeComplete:
		return "complete"
	case OutcomeMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Result итог Assembler.Add
type Result struct {
	Outcome Outcome
	FrameID uint8
	// Data заполнен только для OutcomeComplete
	Data []byte
	// Superseded означает, что фрагмент вытеснил незавершенный кадр прошлого поколения
	Superseded bool
}

type slot struct {
	active     bool
	generation uint32
	total      uint8
	count      int
	parts      [][]byte
	updated    time.Time
}

func (s *slot) reset() {
	for i := range s.parts {
		s.parts[i] = nil
	}
	s.active = false
	s.total = 0
	s.count = 0
}

// Assembler собирает кадры из фрагментов.
// Не потокобезопасен: принадлежит единственной горутине приема.
type Assembler struct {
	opts  Options
	slots [256]slot
}

// NewAssembler создает сборщик
func NewAssembler(opts Options) *Assembler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Assembler{opts: opts}
}

// Mode возвращает режим сборки
func (a *Assembler) Mode() Mode {
	return a.opts.Mode
}

// Add обрабатывает датаграмму. Кадр возвращается только если все total_fragments
// различных фрагментов получены и длина склейки равна expectedSize. Слот
// освобождается после завершения независимо от совпадения размера.
func (a *Assembler) Add(datagram []byte, expectedSize int) Result {
	h, payload, ok := Parse(datagram)
	if !ok {
		return Result{Outcome: OutcomeIgnored}
	}

	s := &a.slots[h.FrameID]
	res := Result{Outcome: OutcomePending, FrameID: h.FrameID}
	now := a.opts.Now()

	if s.active && a.opts.Mode == ModeGenerational && a.supersedes(s, h, now) {
		s.reset()
		res.Superseded = true
	}

	if !s.active {
		if s.parts == nil {
			s.parts = make([][]byte, 256)
		}
		s.active = true
		s.generation++
	}

	// total_fragments: побеждает последнее значение
	s.total = h.TotalFragments
	s.updated = now

	if s.parts[h.FragmentID] == nil {
		s.count++
	}
	s.parts[h.FragmentID] = append([]byte(nil), payload...)

	if s.count != int(s.total) {
		return res
	}

	size := 0
	for i := 0; i < int(s.total); i++ {
		size += len(s.parts[i])
	}
	if size != expectedSize {
		s.reset()
		res.Outcome = OutcomeMismatch
		return res
	}

	frame := make([]byte, 0, size)
	for i := 0; i < int(s.total); i++ {
		frame = append(frame, s.parts[i]...)
	}
	s.reset()

	res.Outcome = OutcomeComplete
	res.Data = frame
	return res
}

// supersedes проверяет, относится ли фрагмент к новому поколению кадра.
// Повтор уже полученного fragment_id поколение не меняет.
func (a *Assembler) supersedes(s *slot, h Header, now time.Time) bool {
	if h.TotalFragments != s.total {
		return true
	}
	if a.opts.StaleAfter > 0 && now.Sub(s.updated) > a.opts.StaleAfter {
		return true
	}
	return false
}

// Pending возвращает число незавершенных кадров
func (a *Assembler) Pending() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].active {
			n++
		}
	}
	return n
}

// Generation возвращает номер поколения слота frame_id (0 если слот не использовался)
func (a *Assembler) Generation(frameID uint8) uint32 {
	return a.slots[frameID].generation
}

// Reset отбрасывает все незавершенные кадры
func (a *Assembler) Reset() {
	for i := range a.slots {
		a.slots[i].reset()
	}
}
