// Package stream реализует сессию просмотра видеопотока с камеры HM01B0:
// конечный автомат подключения, горутину приема фрагментов и оценку частоты кадров.
//
// # Архитектура
//
//   - Controller - автомат Disconnected -> Connected -> Streaming с флагом записи.
//     Владеет сокетом, отправляет сенсору START/STOP, управляет записью и снимками.
//   - Receiver - единственная горутина, читающая сокет. Собирает кадры через
//     fragment.Assembler, обновляет RateEstimator и раздает кадры приемникам.
//   - RateEstimator - скользящее среднее мгновенной частоты по 30 кадрам.
//   - EventQueue и Reporter - события для интерфейса: журнал, статус, частота,
//     счетчик кадров в секунду, время записи.
//
// Receiver управляется командами resume/pause через канал и подтверждает каждую
// команду. Чтение ограничено таймаутом 100ms, поэтому контроллер закрывает сокет
// только после того, как горутина гарантированно перестала его читать.
// Ошибка чтения не пересекает границу горутин: Receiver приостанавливается и
// просит контроллер перевести сессию в Connected.
//
// # Пример
//
//	ctrl, err := stream.NewController(stream.DefaultConfig(),
//	    stream.WithLogger(logger),
//	    stream.WithSinks(stream.Sinks{Still: sink.NewPNGWriter("captures")}),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Close()
//
//	err = ctrl.Connect(stream.ConnectRequest{
//	    RemoteIP: "192.168.11.2", RemotePort: "5000", LocalPort: "5000", ScalePercent: "25",
//	})
//	if err != nil {
//	    return err
//	}
//	ctrl.StartStream()
package stream
