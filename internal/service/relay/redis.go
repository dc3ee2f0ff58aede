package relay

import (
	"context"
	"encoding/json"

	"agentsend/internal/model"
)

func (s *HttpServer) DequeueMessages(ctx context.Context, to string) ([]*model.RelayMessage, error) {
	key := queueKey(to)
	vals, err := s.queue.LRange(ctx, key)
	if err != nil {
		return nil, err
	}
	s.queue.Del(ctx, key)

	var res []*model.RelayMessage
	for _, v := range vals {
		var m model.RelayMessage
		err := json.Unmarshal([]byte(v), &m)
		if err != nil {
			return nil, err
		}

		res = append(res, &m)
	}

	return res, nil
}

func (s *HttpServer) QueueMessages(ctx context.Context, to string, messages []*model.RelayMessage) error {
	var vals []interface{}
	for _, m := range messages {
		data, _ := json.Marshal(m)
		vals = append(vals, data)
	}

	return s.queue.RPush(ctx, queueKey(to), vals...)
}
