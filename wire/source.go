package wire

// Source is the inbound packet contract the engine consumes. Setting
// one up over real UDP sockets with broadcast discovery is explicitly
// out of scope for this module — callers adapt their own
// socket layer to this interface, typically by running DetectKind and
// the matching ParseX function on each datagram and forwarding the
// result on the appropriate channel.
//
// Receive timestamps are comparable across the four channels only when
// a single Clock stamps the packets on all of them.
type Source interface {
	Announcements() <-chan DeviceAnnouncement
	StatusUpdates() <-chan StatusPacket
	BeatEvents() <-chan BeatPacket
	PrecisePositionEvents() <-chan PrecisePositionPacket
}

// ChannelSource is a minimal Source backed by plain channels, used by
// a socket adapter to hand parsed packets to the engine and by tests
// to drive it directly.
type ChannelSource struct {
	announcements chan DeviceAnnouncement
	status        chan StatusPacket
	beats         chan BeatPacket
	precise       chan PrecisePositionPacket
}

// NewChannelSource creates a ChannelSource with the given channel
// buffer depth.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		announcements: make(chan DeviceAnnouncement, buffer),
		status:        make(chan StatusPacket, buffer),
		beats:         make(chan BeatPacket, buffer),
		precise:       make(chan PrecisePositionPacket, buffer),
	}
}

func (s *ChannelSource) Announcements() <-chan DeviceAnnouncement { return s.announcements }
func (s *ChannelSource) StatusUpdates() <-chan StatusPacket       { return s.status }
func (s *ChannelSource) BeatEvents() <-chan BeatPacket            { return s.beats }
func (s *ChannelSource) PrecisePositionEvents() <-chan PrecisePositionPacket {
	return s.precise
}

// PublishAnnouncement feeds an announcement to the source. Blocks if
// the channel is full; production adapters should size the buffer to
// the expected burst rate and drop (with a logged warning) rather than
// block the packet reader thread.
func (s *ChannelSource) PublishAnnouncement(p DeviceAnnouncement) { s.announcements <- p }

// PublishStatus feeds a status update to the source.
func (s *ChannelSource) PublishStatus(p StatusPacket) { s.status <- p }

// PublishBeat feeds a beat notification to the source.
func (s *ChannelSource) PublishBeat(p BeatPacket) { s.beats <- p }

// PublishPrecisePosition feeds a precise-position packet to the
// source.
func (s *ChannelSource) PublishPrecisePosition(p PrecisePositionPacket) { s.precise <- p }

// Close closes all channels. Safe to call once, after all publishers
// have stopped.
func (s *ChannelSource) Close() {
	close(s.announcements)
	close(s.status)
	close(s.beats)
	close(s.precise)
}
