// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package challenge implements the non-canonical in-flight-exit dispute
// game. Any party may challenge an in-flight exit by proving a competing
// transaction spends one of its inputs; the exiting party may rebut by
// proving the in-flight transaction was included in the chain earlier than
// the competitor. The game tracks only the earliest-known competitor: a
// later competitor can never overturn an earlier one.
package challenge

import (
	"bytes"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/containers/events"
	"github.com/plasmalabs/exitgame/containers/option"
	"github.com/plasmalabs/exitgame/finalization"
	"github.com/plasmalabs/exitgame/merkle"
	"github.com/plasmalabs/exitgame/plasmatx"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/store"
	"github.com/plasmalabs/exitgame/util/timeref"
)

var srvlog = log.New("service", "challenge")

var (
	challengeAcceptedCounter = metrics.NewRegisteredCounter("exitgame/challenge/accepted", nil)
	challengeRejectedCounter = metrics.NewRegisteredCounter("exitgame/challenge/rejected", nil)
	respondAcceptedCounter   = metrics.NewRegisteredCounter("exitgame/respond/accepted", nil)
	respondRejectedCounter   = metrics.NewRegisteredCounter("exitgame/respond/rejected", nil)
)

// Challenged is emitted when a challenge lands and flips the exit to
// non-canonical.
type Challenged struct {
	Challenger         common.Address
	TxHash             common.Hash
	CompetitorPosition position.Position
}

// Responded is emitted when a rebuttal lands and restores canonicity.
type Responded struct {
	Responder         common.Address
	TxHash            common.Hash
	RespondedPosition position.Position
}

// Controller runs the dispute game for one supported transaction type.
// Every operation is all-or-nothing: state is staged on a copy of the exit
// record and persisted only after every precondition holds.
type Controller struct {
	store     store.Store
	framework protocol.Framework
	guards    protocol.OutputGuardRegistry
	spends    protocol.SpendingConditionRegistry
	verifier  *finalization.Verifier
	timeRef   timeref.Reference
	txType    protocol.TxType

	challengedFeed *events.Producer[Challenged]
	respondedFeed  *events.Producer[Responded]
}

type Opt = func(c *Controller)

// WithTimeReference overrides the ledger clock, used by tests to control
// the first-phase window.
func WithTimeReference(ref timeref.Reference) Opt {
	return func(c *Controller) {
		c.timeRef = ref
	}
}

func NewController(
	st store.Store,
	framework protocol.Framework,
	guards protocol.OutputGuardRegistry,
	spends protocol.SpendingConditionRegistry,
	txType protocol.TxType,
	opts ...Opt,
) *Controller {
	c := &Controller{
		store:          st,
		framework:      framework,
		guards:         guards,
		spends:         spends,
		verifier:       finalization.NewVerifier(framework),
		timeRef:        timeref.NewRealReference(),
		txType:         txType,
		challengedFeed: events.NewProducer[Challenged](),
		respondedFeed:  events.NewProducer[Responded](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubscribeChallenged streams challenge notifications.
func (c *Controller) SubscribeChallenged() *events.Subscription[Challenged] {
	return c.challengedFeed.Subscribe()
}

// SubscribeResponded streams rebuttal notifications.
func (c *Controller) SubscribeResponded() *events.Subscription[Responded] {
	return c.respondedFeed.Subscribe()
}

// ChallengeArgs is the full evidence bundle for disputing canonicity.
type ChallengeArgs struct {
	// Challenger receives the dispute bond if the challenge stands.
	Challenger common.Address
	// InFlightTx is the disputed transaction.
	InFlightTx []byte
	// InFlightTxInputIndex declares which input the competitor double-spends.
	InFlightTxInputIndex uint64
	// InputTx is the transaction that created the disputed input, with its
	// chain position.
	InputTx      []byte
	InputUtxoPos position.Position
	// OutputType and OutputGuardPreimage identify and open the disputed
	// input's guard.
	OutputType          protocol.OutputType
	OutputGuardPreimage []byte
	// CompetingTx is the transaction claimed to also spend the input.
	CompetingTx               []byte
	CompetingTxInputIndex     uint64
	CompetingTxPos            position.Position
	CompetingTxInclusionProof []byte
	CompetingTxConfirmSig     []byte
	CompetingTxWitness        []byte
	// OptionalArgs is forwarded to the spending condition untouched.
	OptionalArgs []byte
}

// Challenge disputes the canonicity of an in-flight exit by proving a
// competing spend of one of its inputs.
func (c *Controller) Challenge(ctx context.Context, args ChallengeArgs) (err error) {
	defer func() {
		if err != nil {
			challengeRejectedCounter.Inc(1)
		} else {
			challengeAcceptedCounter.Inc(1)
		}
	}()

	exitID := protocol.ComputeExitID(args.InFlightTx)
	exit, err := c.store.Get(exitID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrapf(ErrExitNotFound, "exit %s", exitID)
	}
	if err != nil {
		return err
	}

	if !InFirstPhase(exit.ExitStart, c.timeRef.Get(), c.framework.MinExitPeriod()) {
		return errors.Wrapf(ErrNotFirstPhase, "exit %s started at %d", exitID, exit.ExitStart)
	}

	if bytes.Equal(args.CompetingTx, args.InFlightTx) {
		return ErrSameTransaction
	}

	// The claimed input must resolve to the output identifier the exit
	// recorded for the declared input index.
	claimed := c.outputID(args.InputTx, args.InputUtxoPos)
	stored, err := exit.InputAt(args.InFlightTxInputIndex)
	if err != nil {
		return err
	}
	if claimed != stored {
		return errors.Wrapf(ErrInputMismatch, "input index %d", args.InFlightTxInputIndex)
	}

	// Prove the competing transaction actually spends that input.
	condition, ok := c.spends.ConditionFor(args.OutputType, c.txType)
	if !ok {
		return errors.Wrapf(ErrNoSpendingCondition, "output type %d, tx type %d", args.OutputType, c.txType)
	}
	spent, err := condition.Verify(ctx, protocol.SpendRequest{
		InputTxBytes:       args.InputTx,
		OutputIndex:        args.InputUtxoPos.OutputIndex(),
		InputTxPos:         args.InputUtxoPos,
		SpendingTxBytes:    args.CompetingTx,
		SpendingInputIndex: args.CompetingTxInputIndex,
		Witness:            args.CompetingTxWitness,
		OptionalArgs:       args.OptionalArgs,
	})
	if err != nil {
		return err
	}
	if !spent {
		return ErrSpendNotProven
	}

	// Open the disputed input's guard with the supplied preimage.
	handler, ok := c.guards.HandlerFor(args.OutputType)
	if !ok {
		return errors.Wrapf(ErrNoGuardHandler, "output type %d", args.OutputType)
	}
	inputTx, err := plasmatx.Decode(args.InputTx)
	if err != nil {
		return err
	}
	spentOutput, err := inputTx.OutputAt(args.InputUtxoPos.OutputIndex())
	if err != nil {
		return err
	}
	if !handler.IsValid(spentOutput.Guard, args.OutputType, args.OutputGuardPreimage) {
		return errors.Wrapf(ErrInvalidPreimage, "output type %d", args.OutputType)
	}

	competitorPos, err := c.competitorPosition(args, handler, spentOutput.Guard)
	if err != nil {
		return err
	}

	// Lowest position wins: only a strictly earlier competitor carries new
	// information.
	if exit.OldestCompetitor.IsSome() && !competitorPos.Before(exit.OldestCompetitor.Unwrap()) {
		return errors.Wrapf(ErrCompetitorTooLate, "competitor %s, recorded %s",
			competitorPos, exit.OldestCompetitor.Unwrap())
	}

	exit.OldestCompetitor = option.Some(competitorPos)
	exit.IsCanonical = false
	exit.BondOwner = args.Challenger
	if err := c.store.Put(exitID, exit); err != nil {
		return err
	}

	txHash := plasmatx.HashBytes(args.InFlightTx)
	srvlog.Info("in-flight exit challenged as non-canonical",
		"challenger", args.Challenger,
		"txHash", txHash,
		"competitorPosition", competitorPos,
	)
	c.challengedFeed.Broadcast(ctx, Challenged{
		Challenger:         args.Challenger,
		TxHash:             txHash,
		CompetitorPosition: competitorPos,
	})
	return nil
}

// RespondArgs is the rebuttal evidence: the disputed transaction, its
// claimed chain position and the inclusion proof.
type RespondArgs struct {
	Responder      common.Address
	InFlightTx     []byte
	InFlightTxPos  position.Position
	InclusionProof []byte
}

// Respond rebuts a non-canonical challenge by proving the in-flight
// transaction occupies a chain position earlier than the recorded
// competitor.
func (c *Controller) Respond(ctx context.Context, args RespondArgs) (err error) {
	defer func() {
		if err != nil {
			respondRejectedCounter.Inc(1)
		} else {
			respondAcceptedCounter.Inc(1)
		}
	}()

	exitID := protocol.ComputeExitID(args.InFlightTx)
	exit, err := c.store.Get(exitID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrapf(ErrExitNotFound, "exit %s", exitID)
	}
	if err != nil {
		return err
	}

	if exit.OldestCompetitor.IsNone() {
		return errors.Wrapf(ErrNoCompetitor, "exit %s", exitID)
	}
	if !args.InFlightTxPos.Before(exit.OldestCompetitor.Unwrap()) {
		return errors.Wrapf(ErrResponseTooLate, "position %s, recorded %s",
			args.InFlightTxPos, exit.OldestCompetitor.Unwrap())
	}

	block, err := c.framework.BlockAt(args.InFlightTxPos.BlockNum())
	if err != nil {
		return err
	}
	proof, err := merkle.ProofFromBytes(args.InclusionProof)
	if err != nil {
		return err
	}
	if !merkle.VerifyInclusion(merkle.LeafHash(args.InFlightTx), args.InFlightTxPos.TxIndex(), block.Root, proof) {
		return errors.Wrapf(ErrNotIncluded, "position %s", args.InFlightTxPos)
	}

	exit.OldestCompetitor = option.Some(args.InFlightTxPos)
	exit.IsCanonical = true
	exit.BondOwner = args.Responder
	if err := c.store.Put(exitID, exit); err != nil {
		return err
	}

	txHash := plasmatx.HashBytes(args.InFlightTx)
	srvlog.Info("in-flight exit challenge rebutted",
		"responder", args.Responder,
		"txHash", txHash,
		"respondedPosition", args.InFlightTxPos,
	)
	c.respondedFeed.Broadcast(ctx, Responded{
		Responder:         args.Responder,
		TxHash:            txHash,
		RespondedPosition: args.InFlightTxPos,
	})
	return nil
}

// outputID derives the identifier of the disputed input, selecting the
// deposit derivation when its position lies in the deposit range.
func (c *Controller) outputID(inputTx []byte, pos position.Position) protocol.OutputID {
	if pos.IsDeposit(c.framework.ChildBlockInterval()) {
		return protocol.DepositOutputID(inputTx, pos.OutputIndex(), pos)
	}
	return protocol.NormalOutputID(inputTx, pos.OutputIndex())
}

// competitorPosition finalizes the competing transaction and returns the
// position it occupies for priority purposes. A competitor with no position
// claim must be self-finalizing and is ranked behind every included
// transaction.
func (c *Controller) competitorPosition(
	args ChallengeArgs,
	handler protocol.OutputGuardHandler,
	guard common.Hash,
) (position.Position, error) {
	competingTx, err := plasmatx.Decode(args.CompetingTx)
	if err != nil {
		return 0, err
	}
	competingTxType := protocol.TxType(competingTx.TxType)

	req := finalization.Request{
		TxBytes:        args.CompetingTx,
		TxType:         competingTxType,
		Pos:            args.CompetingTxPos,
		InclusionProof: args.CompetingTxInclusionProof,
		ConfirmSig:     args.CompetingTxConfirmSig,
	}
	if args.CompetingTxPos != 0 {
		proto, err := c.framework.ProtocolOf(competingTxType)
		if err != nil {
			return 0, err
		}
		if proto == protocol.ProtocolMVP {
			signer, err := handler.ConfirmSigAddress(guard, args.OutputType, args.OutputGuardPreimage)
			if err != nil {
				return 0, err
			}
			req.ConfirmSigAddress = signer
		}
	}
	if err := c.verifier.VerifyStandardFinalized(req); err != nil {
		return 0, err
	}
	if args.CompetingTxPos == 0 {
		return position.NonInclusion, nil
	}
	return args.CompetingTxPos, nil
}
