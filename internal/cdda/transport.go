package cdda

// Callback receives read-correction notifications. offset is a position in
// 16-bit words from the start of the disc for sector-bound statuses, and a
// byte count for StatusOverlap.
type Callback func(offset int64, status Status)

// SectorRangeProvider answers sector range questions about the loaded disc.
// Methods return a negative value when the disc or track is unknown.
type SectorRangeProvider interface {
	FirstSectorOfDisc() int64
	LastSectorOfDisc() int64
	FirstSectorOfTrack(track int) int64
	LastSectorOfTrack(track int) int64
	NumOfFramesOfTrack(track int) int64
}

// Transport is the handle the extraction worker drives: sector ranges plus
// the read-correction controls and the blocking sector read.
type Transport interface {
	SectorRangeProvider

	// Seek positions the next ReadSector. whence is SeekSet, SeekCur or SeekEnd.
	Seek(sector int64, whence int) (int64, error)
	// SampleOffset shifts every subsequent read by offset stereo samples.
	SampleOffset(offset int)
	SetParanoiaMode(mode int)
	SetMaxRetries(retries int)
	SetNeverSkip(neverSkip bool)

	// ReadSector returns the next FrameSizeRaw bytes of verified audio and
	// advances the read position. It invokes cb synchronously zero or more
	// times before returning. A nil slice means the sector could not be
	// recovered; err, when set, describes why.
	ReadSector(cb Callback) ([]byte, error)
}
