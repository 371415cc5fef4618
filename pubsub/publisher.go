// Package pubsub distributes pipeline frames to subscribers over
// namespaced topics.
//
// Publishing never blocks the pipeline: a subscriber that cannot keep up
// loses frames, counted per topic, and the stream stays current for
// everyone else.
package pubsub

import (
	"errors"
	"sync/atomic"

	"github.com/radiowizard/radiowizard/pipeline"
	"github.com/radiowizard/radiowizard/pubsub/wire"
)

// Topic names. Every frame is published under "<node>/<topic>" so several
// nodes can share one distribution fabric.
const (
	TopicSpectrum = "spectrum"
	TopicAudio    = "audio"
	TopicStatus   = "status"
)

// ErrQueueFull reports a full outbound queue; the frame was dropped.
var ErrQueueFull = errors.New("pubsub: outbound queue full")

// Transport carries an encoded frame to subscribers of a topic. Send must
// not block; it returns ErrQueueFull (or wraps it) when the frame cannot
// be queued.
type Transport interface {
	Send(topic string, payload []byte) error
}

// Publisher encodes pipeline frames and hands them to a transport under
// namespaced topics. It implements pipeline.Bus.
type Publisher struct {
	node string
	tr   Transport

	spectrumDrops atomic.Uint64
	audioDrops    atomic.Uint64
	statusDrops   atomic.Uint64
}

// NewPublisher wraps a transport. node namespaces every topic.
func NewPublisher(node string, tr Transport) *Publisher {
	return &Publisher{node: node, tr: tr}
}

func (p *Publisher) topic(name string) string {
	if p.node == "" {
		return name
	}
	return p.node + "/" + name
}

func (p *Publisher) PublishSpectrum(f *pipeline.SpectralFrame) error {
	if err := p.tr.Send(p.topic(TopicSpectrum), wire.EncodeSpectralFrame(f)); err != nil {
		p.spectrumDrops.Add(1)
		return err
	}
	return nil
}

func (p *Publisher) PublishAudio(f *pipeline.OutputFrame) error {
	if err := p.tr.Send(p.topic(TopicAudio), wire.EncodeOutputFrame(f)); err != nil {
		p.audioDrops.Add(1)
		return err
	}
	return nil
}

func (p *Publisher) PublishStatus(f *pipeline.StatusFrame) error {
	if err := p.tr.Send(p.topic(TopicStatus), wire.EncodeStatusFrame(f)); err != nil {
		p.statusDrops.Add(1)
		return err
	}
	return nil
}

// Drops returns the per-topic drop counts since construction.
func (p *Publisher) Drops() (spectrum, audio, status uint64) {
	return p.spectrumDrops.Load(), p.audioDrops.Load(), p.statusDrops.Load()
}

var _ pipeline.Bus = (*Publisher)(nil)
