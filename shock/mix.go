package shock

import (
	"log/slog"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/vmihailenco/msgpack/v5"
)

type MixDump struct {
	Policy1Dump []byte
	Policy2Dump []byte
}

// Mix runs two policies every step. When both flood the same household,
// the depth of the second one wins.
type Mix struct {
	model.BaseShockPolicy
	Policy1 model.ShockPolicy
	Policy2 model.ShockPolicy
}

func _() model.ShockPolicy {
	return &Mix{}
}

func (p *Mix) PostInit(dumpData []byte) {
	dumpStruct := &MixDump{}
	if dumpData != nil {
		err := msgpack.Unmarshal(dumpData, dumpStruct)
		if err == nil {
			p.Policy1.PostInit(dumpStruct.Policy1Dump)
			p.Policy2.PostInit(dumpStruct.Policy2Dump)
			return
		}
		slog.Warn("discarding corrupted mixed shock policy state", "error", err)
	}
	p.Policy1.PostInit(nil)
	p.Policy2.PostInit(nil)
}

func (p *Mix) PreStep(curStep int) []model.Shock {
	return append(p.Policy1.PreStep(curStep), p.Policy2.PreStep(curStep)...)
}

func (p *Mix) Dump() []byte {
	ret := MixDump{
		Policy1Dump: p.Policy1.Dump(),
		Policy2Dump: p.Policy2.Dump(),
	}
	retByte, err := msgpack.Marshal(ret)
	if err != nil {
		slog.Error("failed to marshal mixed shock policy state", "error", err)
		return nil
	}
	return retByte
}
