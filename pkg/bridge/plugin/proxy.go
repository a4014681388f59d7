package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/LLIEPJIOK/framebridge/pkg/bridge"
)

// Method вызывает одноимённый канал на другой стороне и ждёт ответа.
type Method func(ctx context.Context, payload any) (json.RawMessage, error)

func newMethod(socket *bridge.Socket, name string) Method {
	return func(ctx context.Context, payload any) (json.RawMessage, error) {
		// Каждый вызов открывает собственное представление канала.
		ch, err := socket.CreateChannel(name, nil)
		if err != nil {
			return nil, err
		}

		return ch.SendAndWait(ctx, payload)
	}
}

func newMethods(socket *bridge.Socket, names []string) map[string]Method {
	methods := make(map[string]Method, len(names))
	for _, name := range names {
		methods[name] = newMethod(socket, name)
	}

	return methods
}

func callMethod(ctx context.Context, methods map[string]Method, name string, payload any) (json.RawMessage, error) {
	method, ok := methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}

	return method(ctx, payload)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
