package simulation

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// SaveAccumulativeModelState writes the state as little endian arrays
// (opinions, savings, flood memory, adapted flags) behind an lz4 frame.
func SaveAccumulativeModelState(path string, state *AccumulativeModelState) error {
	var buf bytes.Buffer

	steps := int32(state.Steps())
	agents := int32(0)
	if steps > 0 {
		agents = int32(len(state.Opinions[0]))
	}

	// dimensions
	binary.Write(&buf, binary.LittleEndian, steps)
	binary.Write(&buf, binary.LittleEndian, agents)

	for _, table := range [][][]float64{state.Opinions, state.Savings, state.FloodMemory} {
		if len(table) != int(steps) {
			return fmt.Errorf("ragged accumulative state: %d steps, table has %d", steps, len(table))
		}
		for _, row := range table {
			if len(row) != int(agents) {
				return fmt.Errorf("ragged accumulative state: %d agents, row has %d", agents, len(row))
			}
			binary.Write(&buf, binary.LittleEndian, row)
		}
	}

	if len(state.Adapted) != int(steps) {
		return fmt.Errorf("ragged accumulative state: %d steps, adapted has %d", steps, len(state.Adapted))
	}
	for _, row := range state.Adapted {
		if len(row) != int(agents) {
			return fmt.Errorf("ragged accumulative state: %d agents, row has %d", agents, len(row))
		}
		binary.Write(&buf, binary.LittleEndian, row)
	}

	// lz4
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return os.WriteFile(path, out.Bytes(), 0644)
}

func LoadAccumulativeModelState(path string) (*AccumulativeModelState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := lz4.NewReader(bytes.NewReader(raw))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}

	reader := bytes.NewReader(buf.Bytes())

	var steps, agents int32
	if err := binary.Read(reader, binary.LittleEndian, &steps); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.LittleEndian, &agents); err != nil {
		return nil, err
	}

	readTable := func() ([][]float64, error) {
		table := make([][]float64, steps)
		for i := range table {
			table[i] = make([]float64, agents)
			if err := binary.Read(reader, binary.LittleEndian, table[i]); err != nil {
				return nil, err
			}
		}
		return table, nil
	}

	state := &AccumulativeModelState{}
	if state.Opinions, err = readTable(); err != nil {
		return nil, err
	}
	if state.Savings, err = readTable(); err != nil {
		return nil, err
	}
	if state.FloodMemory, err = readTable(); err != nil {
		return nil, err
	}

	state.Adapted = make([][]bool, steps)
	for i := range state.Adapted {
		state.Adapted[i] = make([]bool, agents)
		if err := binary.Read(reader, binary.LittleEndian, state.Adapted[i]); err != nil {
			return nil, err
		}
	}

	return state, nil
}
