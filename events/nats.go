package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// natsConn 只需要 core NATS 的 Publish
type natsConn interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher 把事件发布到 <subject>.<type>
type NATSPublisher struct {
	conn    natsConn
	subject string
	closer  func()
}

// DialNATS 连接 NATS；断线无限重连
func DialNATS(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("treasurehunt"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p := newNATSPublisher(conn, subject)
	p.closer = conn.Close
	return p, nil
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// Subject 事件对应的主题
func (p *NATSPublisher) Subject(t Type) string {
	return p.subject + "." + string(t)
}

func (p *NATSPublisher) Publish(_ context.Context, e Event) error {
	data, err := e.Encode()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(e.Type), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", e.Type, err)
	}
	return nil
}

// Close 断开连接
func (p *NATSPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
