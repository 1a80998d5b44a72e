// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/apierr"
	"github.com/dbasu/corenet/netresult"
	"github.com/dbasu/corenet/routingtable"
)

// FrameSender is the connection-manager capability the processor needs:
// hand an already-framed envelope off to the transport addressed at
// target. It does not block for a reply; replies arrive later through
// Deliver via whatever demultiplexes inbound frames.
type FrameSender interface {
	SendFrame(ctx context.Context, target *routingtable.NodeRef, frame []byte) error
}

// Codec turns a Message and its operation body into the bytes handed to
// FrameSender, and parses inbound bytes back into a Message. Kept as an
// interface so rpc does not depend on a concrete wire-framing choice
// beyond what it already defines in Message/RespondTo.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(frame []byte) (Message, error)
}

// Publisher is the client-update-stream collaborator (spec §6): a notable
// send failure or timed-out Question is pushed out as a "log" update, so a
// subscribed IPC client sees it without tailing the process's own log
// output. *clientapi.Publisher implements this.
type Publisher interface {
	Log(level, message string)
}

// Processor is the RPC orchestrator: it frames Questions, tracks
// correlation, applies destination/safety resolution, and records
// send/receive outcomes against the target's bucket entry.
type Processor struct {
	log     log.Logger
	sender  FrameSender
	codec   Codec
	waiters *WaiterTable
	timeout time.Duration
	nextOp  uint64
	updates Publisher
}

func NewProcessor(sender FrameSender, codec Codec, timeout time.Duration, updates Publisher, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.New("component", "rpc")
	}
	return &Processor{
		log:     logger,
		sender:  sender,
		codec:   codec,
		waiters: NewWaiterTable(logger),
		timeout: timeout,
		updates: updates,
	}
}

func (p *Processor) logUpdate(level, message string) {
	if p.updates != nil {
		p.updates.Log(level, message)
	}
}

func (p *Processor) allocOpID() uint64 {
	return atomic.AddUint64(&p.nextOp, 1)
}

// Ask sends op as a Question to target via dest, waits up to the
// processor's configured timeout for its Answer, and records the
// send/receive outcome on target's bucket entry (spec §4.4
// send-failure recording). It never returns a bare error for transport
// outcomes: every path returns a netresult.Result.
func (p *Processor) Ask(ctx context.Context, target *routingtable.NodeRef, op OperationKind, body []byte, dest Destination, resolver RouteResolver) netresult.Result[Message] {
	entry := target.Entry()

	respondTo, err := ResolveRespondTo(dest, resolver)
	if err != nil {
		entry.OnFailedToSend()
		return netresult.NoConnection[Message](err.Error())
	}

	opID := p.allocOpID()
	msg := Message{OpID: opID, Kind: MessageQuestion, Operation: op, RespondTo: respondTo, Body: body}

	frame, err := p.codec.Encode(msg)
	if err != nil {
		entry.OnFailedToSend()
		return netresult.InvalidMessage[Message](err.Error())
	}

	answers := p.waiters.Register(opID)
	entry.OnQuestionSent(time.Now(), op.expectsAnswer())

	if err := p.sender.SendFrame(ctx, target, frame); err != nil {
		p.waiters.Forget(opID)
		entry.OnFailedToSend()
		p.logUpdate("warn", "rpc: send failed: "+err.Error())
		return netresult.NoConnection[Message](err.Error())
	}
	entry.RecordBytesSent(len(frame), time.Now())

	if !op.expectsAnswer() {
		p.waiters.Forget(opID)
		return netresult.Value(Message{})
	}

	sentAt := time.Now()
	answer, ok := p.waiters.Wait(answers, opID, p.timeout, ctx.Done())
	if !ok {
		entry.OnQuestionLost()
		p.logUpdate("warn", "rpc: "+op.String()+" question timed out")
		return netresult.Timeout[Message]()
	}
	entry.OnAnswerRcvd(time.Now(), time.Since(sentAt))
	entry.RecordBytesReceived(len(answer.Body), time.Now())
	return netresult.Value(answer)
}

// Tell sends op as a fire-and-forget Statement; it never waits for an
// Answer and records only send failures.
func (p *Processor) Tell(ctx context.Context, target *routingtable.NodeRef, op OperationKind, body []byte, dest Destination, resolver RouteResolver) netresult.Result[struct{}] {
	entry := target.Entry()

	respondTo, err := ResolveRespondTo(dest, resolver)
	if err != nil {
		entry.OnFailedToSend()
		return netresult.NoConnection[struct{}](err.Error())
	}

	msg := Message{OpID: p.allocOpID(), Kind: MessageStatement, Operation: op, RespondTo: respondTo, Body: body}
	frame, err := p.codec.Encode(msg)
	if err != nil {
		entry.OnFailedToSend()
		return netresult.InvalidMessage[struct{}](err.Error())
	}
	if err := p.sender.SendFrame(ctx, target, frame); err != nil {
		entry.OnFailedToSend()
		p.logUpdate("warn", "rpc: send failed: "+err.Error())
		return netresult.NoConnection[struct{}](err.Error())
	}
	entry.RecordBytesSent(len(frame), time.Now())
	return netresult.Value(struct{}{})
}

// Dispatch routes an inbound decoded frame: Answers go to the waiter
// table, Questions/Statements go to handler keyed by operation kind.
// Unregistered operations surface as apierr.InvalidTarget so callers
// can distinguish "not implemented yet" from a malformed frame.
func (p *Processor) Dispatch(msg Message, handlers map[OperationKind]func(Message)) error {
	if msg.Kind == MessageAnswer {
		p.waiters.Deliver(msg)
		return nil
	}
	h, ok := handlers[msg.Operation]
	if !ok {
		return apierr.InvalidTarget("no handler registered for operation " + msg.Operation.String())
	}
	h(msg)
	return nil
}
