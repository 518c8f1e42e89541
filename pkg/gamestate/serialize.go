package gamestate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// EncodeSnapshot frames any JSON-serializable snapshot document as
// zstd-compressed JSON. It backs GameState.Serialize and the session
// layer's suspend/resume snapshots.
func EncodeSnapshot(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot into v.
func DecodeSnapshot(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty snapshot")
	}

	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return fmt.Errorf("failed to decompress snapshot: %v", err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %v", err)
	}
	return nil
}

// Serialize encodes the state for persistence across suspend/resume
// boundaries.
func (g GameState) Serialize() ([]byte, error) {
	return EncodeSnapshot(g)
}

// Restore decodes a serialized state. Callers must treat an error as
// non-fatal and fall back to DefaultState.
func Restore(data []byte) (GameState, error) {
	state := GameState{}
	if err := DecodeSnapshot(data, &state); err != nil {
		return GameState{}, err
	}
	if state.RemotePlayers == nil {
		state.RemotePlayers = make(map[string]RemotePlayer)
	}
	return state, nil
}
