// Package engine schedules solvers and couplers over a shared state store.
//
// A step has two phases separated by barriers:
//
//	solve:  every solver reads the committed pre-step state and writes its
//	        owned keys; writes are merged once all solvers finish.
//	couple: couplers run in dependency levels derived from their declared
//	        inputs and outputs; each level sees the merged result of the
//	        levels before it.
//
// A step commits atomically. Any module error, panic, undeclared access or
// non-finite write discards the step and halts the engine:
//
//	eng, err := engine.New(solvers, couplers, 1.0, engine.WithBatch(64))
//	if err != nil {
//		return err // *engine.ConfigError
//	}
//	for snap, err := range eng.Run(ctx, 100) {
//		...
//	}
package engine
