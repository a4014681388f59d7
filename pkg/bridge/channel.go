package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

type ChannelOption func(*registration)

// Once снимает обработчик перед первым вызовом.
func Once() ChannelOption {
	return func(r *registration) {
		r.once = true
	}
}

type sendOptions struct {
	msgID string
}

type SendOption func(*sendOptions)

// WithMessageID отправляет ручной ответ на запрос с этим id,
// поэтому в метриках такое сообщение учитывается как reply.
func WithMessageID(id string) SendOption {
	return func(o *sendOptions) {
		o.msgID = id
	}
}

// Channel - представление регистрации в сокете, а не самостоятельный объект.
type Channel struct {
	socket *Socket
	name   string
}

func (c *Channel) Name() string {
	return c.name
}

// Send подтверждает только попытку отправки.
func (c *Channel) Send(payload any, opts ...SendOption) error {
	if c.socket.IsTerminated() {
		return ErrTerminated
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	kind := kindReply
	if o.msgID == "" {
		o.msgID = c.socket.ids.next()
		kind = kindNotify
	}

	env, err := NewEnvelope(o.msgID, c.name, payload, false)
	if err != nil {
		return err
	}

	return c.socket.transmit(env, kind)
}

// SendAndWait не имеет собственного таймаута: ожидание ограничивает только ctx.
func (c *Channel) SendAndWait(ctx context.Context, payload any) (json.RawMessage, error) {
	s := c.socket

	env, err := NewEnvelope(s.ids.next(), c.name, payload, true)
	if err != nil {
		return nil, err
	}

	pr, err := s.addPending(env.ID)
	if err != nil {
		return nil, err
	}

	if err := s.transmit(env, kindRequest); err != nil {
		s.dropPending(env.ID)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case payload := <-pr.replyCh:
		if rerr := remoteError(payload); rerr != nil {
			return nil, rerr
		}

		return payload, nil

	case err := <-pr.errCh:
		return nil, err

	case <-ctx.Done():
		s.abandonPending(env.ID)
		return nil, ctx.Err()
	}
}

func (c *Channel) SendAndWaitTyped(ctx context.Context, payload any, out any) error {
	reply, err := c.SendAndWait(ctx, payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(reply, out)
}
