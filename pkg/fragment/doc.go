// Package fragment реализует формат фрагментов видеокадра поверх UDP и сборку
// кадров из фрагментов.
//
// Каждая датаграмма несет 4-байтовый заголовок и часть кадра:
//
//	[frame_id:u8][fragment_id:u8][total_fragments:u8][reserved:u8] || payload
//
// Сенсор выставляет reserved = 0x01 в последнем фрагменте кадра. Полезная
// нагрузка ограничена 1468 байтами (1472 байта UDP минус заголовок), поэтому
// кадр 320x240 YUY2 (153600 байт) занимает 105 датаграмм.
//
// # Сборка
//
// Assembler хранит таблицу из 256 слотов, индексированную frame_id. Кадр
// считается собранным, когда число различных fragment_id в слоте совпадает с
// total_fragments. Результат выдается только если длина склейки фрагментов
// 0..total-1 равна ожидаемому размеру кадра.
//
//	asm := fragment.NewAssembler(fragment.DefaultOptions())
//	res := asm.Add(datagram, 320*240*2)
//	if res.Outcome == fragment.OutcomeComplete {
//	    display(res.Data)
//	}
//
// Режим ModeGenerational (по умолчанию) сбрасывает слот, если фрагмент приходит
// с другим total_fragments или слот простаивал дольше StaleAfter. Режим
// ModeLegacyMerge повторяет поведение исходного просмотрщика: фрагменты двух
// кадров с одинаковым frame_id сливаются, total_fragments перезаписывается
// последним пришедшим значением.
package fragment
