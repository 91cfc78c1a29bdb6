// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package decoder

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// StateTensors is the host (materialized) version of State.
type StateTensors struct {
	Hidden, Cell *tensors.Tensor
}

// StepExec executes Config.Step from host tensors.
//
// It holds the compiled graphs (one per combination of input shapes) and a reference to the context holding
// the model variables, but not the decoding state: each call takes the state and returns the next one.
type StepExec struct {
	cfg  Config
	exec *context.Exec
}

// NewStepExec creates a StepExec for the model variables in ctx.
//
// Variables missing in ctx are created (and initialized) on the first call, so ctx is used unchecked.
func NewStepExec(backend backends.Backend, ctx *context.Context, cfg Config) (*StepExec, error) {
	e := &StepExec{cfg: cfg}
	var err error
	e.exec, err = context.NewExec(backend, ctx.Checked(false), func(ctx *context.Context, inputs []*Node) []*Node {
		logits, state, weights := cfg.Step(ctx, inputs[0], inputs[1], State{Hidden: inputs[2], Cell: inputs[3]})
		return []*Node{logits, state.Hidden, state.Cell, weights}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create decoder step executor")
	}
	return e, nil
}

// Config returns the decoder configuration used by e.
func (e *StepExec) Config() Config {
	return e.cfg
}

// Call runs one decoding step.
//
// tokens is shaped [batchSize] (int32), features [batchSize, numPositions, embeddingDim] and state is either
// Config.ResetStateTensors or the state returned by the previous call.
func (e *StepExec) Call(tokens, features *tensors.Tensor, state StateTensors) (
	logits *tensors.Tensor, newState StateTensors, weights *tensors.Tensor, err error) {
	if state.Hidden == nil || state.Cell == nil {
		err = errors.New("decoder state not set, use Config.ResetStateTensors to start a new caption")
		return
	}
	logits, newState.Hidden, newState.Cell, weights, err = e.exec.Exec4(tokens, features, state.Hidden, state.Cell)
	if err != nil {
		err = errors.WithMessage(err, "decoder step failed")
	}
	return
}
