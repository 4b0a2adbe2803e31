package vm

import (
	"github.com/evmcore/evmcore/core/types"
)

// makeLog builds the handler for LOG0..LOG4. Cost: 375 + 375 per topic +
// 8 per data byte, plus memory growth.
func makeLog(topicCount int) executionFunc {
	return func(in *Interpreter, host Host) {
		if in.isStatic {
			in.halt(ResultCallNotAllowedInsideStatic)
			return
		}
		offsetWord, sizeWord := in.stack.Pop(), in.stack.Pop()
		offset, size, ok := in.memRange(&offsetWord, &sizeWord)
		if !ok {
			return
		}
		cost := GasLogTopic*uint64(topicCount) + GasLogData*size
		if !in.gas.RecordCost(cost) {
			in.halt(ResultOutOfGas)
			return
		}
		if !in.resizeMemory(offset, size) {
			return
		}
		topics := make([]types.Hash, topicCount)
		for i := 0; i < topicCount; i++ {
			t := in.stack.Pop()
			topics[i] = types.Hash(t.Bytes32())
		}
		host.Log(types.Log{
			Address: in.contract.Address,
			Topics:  topics,
			Data:    in.memory.GetCopy(offset, size),
		})
	}
}
