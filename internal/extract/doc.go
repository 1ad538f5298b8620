// Package extract implements the CD audio extraction worker.
//
// A Worker drives a cdda.Transport sector by sector on its own goroutine,
// classifies the read-correction callbacks reported for every sector,
// de-duplicates scratch and read-error warnings, keeps progress counters,
// and records an append-only extraction protocol describing every anomaly.
// All notifications reach the caller through a single ordered event
// channel; every run ends with exactly one terminal event whose Outcome
// tells success, failure, cancellation and device errors apart.
//
// Typical use:
//
//	w := extract.New(transport, extract.WithLogger(logger))
//	_ = w.Configure(extract.Request{Track: cdda.Track(3), ParanoiaMode: 3, MaxRetries: 20, NeverSkip: true})
//	_ = w.Start()
//	for ev := range w.Events() {
//		...
//		if ev.Terminal {
//			break
//		}
//	}
package extract
