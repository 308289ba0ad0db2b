package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"gopkg.in/vmihailenco/msgpack.v2"
)

// Codec сериализация структурированных значений для строкового хранилища
type Codec interface {
	Marshal(v interface{}) (string, error)
	Unmarshal(data string, v interface{}) error
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func (JSONCodec) Unmarshal(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}

// MsgpackCodec хранит msgpack в base64, чтобы значение оставалось валидной строкой во всех драйверах
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v interface{}) (string, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (MsgpackCodec) Unmarshal(data string, v interface{}) error {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, v)
}

func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("неизвестный кодек: %s", name)
	}
}

// Records типизированный доступ к хранилищу поверх кодека
type Records struct {
	Store KeyValue
	Codec Codec
}

func NewRecords(store KeyValue, codec Codec) *Records {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Records{Store: store, Codec: codec}
}

// Load возвращает ErrNotFound, если ключа нет
func (r *Records) Load(ctx context.Context, key string, v interface{}) error {
	data, ok, err := r.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("не удалось прочитать %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	if err = r.Codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("не удалось декодировать %s: %w", key, err)
	}
	return nil
}

func (r *Records) Save(ctx context.Context, key string, v interface{}) error {
	data, err := r.Codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("не удалось закодировать %s: %w", key, err)
	}
	if err = r.Store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", key, err)
	}
	return nil
}

func (r *Records) Remove(ctx context.Context, key string) error {
	if err := r.Store.Remove(ctx, key); err != nil {
		return fmt.Errorf("не удалось удалить %s: %w", key, err)
	}
	return nil
}
