// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package challenge

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/plasmalabs/exitgame/containers/option"
	"github.com/plasmalabs/exitgame/finalization"
	"github.com/plasmalabs/exitgame/merkle"
	"github.com/plasmalabs/exitgame/payment"
	"github.com/plasmalabs/exitgame/plasmatx"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/store"
	"github.com/plasmalabs/exitgame/util/testhelpers"
	"github.com/plasmalabs/exitgame/util/timeref"
)

const (
	minExitPeriod      = timeref.SecondsDuration(604_800)
	childBlockInterval = uint64(1000)
	exitStart          = timeref.SecondsDuration(1_000_000)

	ownerKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

	// Transaction type whose protocol is MVP, used to exercise the
	// positionless-claim rejection.
	mvpTxType protocol.TxType = 7
)

type gameFixture struct {
	t          *testing.T
	ctx        context.Context
	store      *store.Memory
	fw         *protocol.StaticFramework
	clock      *timeref.ArtificialReference
	controller *Controller

	ownerKey *ecdsa.PrivateKey
	owner    common.Address

	inputPos     position.Position
	inputTxBytes []byte
	inFlightTx   []byte
	exitID       protocol.ExitID
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()
	f := &gameFixture{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemory(),
		fw:    protocol.NewStaticFramework(minExitPeriod, childBlockInterval),
		clock: timeref.NewArtificialReference(),
	}
	require.NoError(t, f.fw.RegisterProtocol(payment.TxType, protocol.ProtocolMoreVP))
	require.NoError(t, f.fw.RegisterProtocol(mvpTxType, protocol.ProtocolMVP))

	guards := protocol.NewMapGuardRegistry()
	require.NoError(t, guards.Register(payment.OutputType, payment.NewGuardHandler()))
	spends := protocol.NewMapSpendRegistry()
	require.NoError(t, spends.Register(payment.OutputType, payment.TxType, payment.NewSpendingCondition()))

	f.controller = NewController(f.store, f.fw, guards, spends, payment.TxType,
		WithTimeReference(f.clock))

	key, err := crypto.ToECDSA(common.FromHex(ownerKeyHex))
	require.NoError(t, err)
	f.ownerKey = key
	f.owner = crypto.PubkeyToAddress(key.PublicKey)

	f.inputPos = position.MustEncode(1000, 0, 0)
	f.inputTxBytes = f.paymentTx(nil, f.owner, 1).MustEncode()
	f.inFlightTx = f.paymentTx([]position.Position{f.inputPos}, testhelpers.RandomAddress(), 2).MustEncode()
	f.exitID = protocol.ComputeExitID(f.inFlightTx)

	require.NoError(t, f.store.Put(f.exitID, &protocol.InFlightExit{
		ExitStart:        exitStart,
		IsCanonical:      true,
		OldestCompetitor: option.None[position.Position](),
		Inputs:           []protocol.OutputID{protocol.NormalOutputID(f.inputTxBytes, 0)},
	}))
	f.clock.Set(exitStart + 100)
	return f
}

// paymentTx builds a payment transaction; the metadata tag keeps otherwise
// identical transactions byte-distinct.
func (f *gameFixture) paymentTx(inputs []position.Position, owner common.Address, tag byte) *plasmatx.Transaction {
	return &plasmatx.Transaction{
		TxType: uint64(payment.TxType),
		Inputs: inputs,
		Outputs: []plasmatx.Output{{
			OutputType: uint64(payment.OutputType),
			Guard:      payment.GuardFor(owner),
			Token:      common.Address{},
			Amount:     big.NewInt(10),
		}},
		Metadata: common.BytesToHash([]byte{tag}),
	}
}

// competitor builds a signed competing transaction spending the disputed
// input and, when blockNum is nonzero, includes it in a new child block.
func (f *gameFixture) competitor(tag byte, blockNum uint64) (txBytes []byte, pos position.Position, proof []byte) {
	f.t.Helper()
	tx := f.paymentTx([]position.Position{f.inputPos}, testhelpers.RandomAddress(), tag)
	txBytes = tx.MustEncode()
	if blockNum == 0 {
		return txBytes, 0, nil
	}
	tree, err := merkle.NewTree([][]byte{txBytes})
	require.NoError(f.t, err)
	require.NoError(f.t, f.fw.AddBlock(blockNum, protocol.BlockInfo{Root: tree.Root(), Timestamp: 1}))
	rawProof, err := tree.Proof(0)
	require.NoError(f.t, err)
	return txBytes, position.MustEncode(blockNum, 0, 0), merkle.ProofToBytes(rawProof)
}

func (f *gameFixture) challengeArgs(txBytes []byte, pos position.Position, proof []byte) ChallengeArgs {
	f.t.Helper()
	witness, err := payment.SignSpend(f.ownerKey, txBytes)
	require.NoError(f.t, err)
	return ChallengeArgs{
		Challenger:                testhelpers.RandomAddress(),
		InFlightTx:                f.inFlightTx,
		InFlightTxInputIndex:      0,
		InputTx:                   f.inputTxBytes,
		InputUtxoPos:              f.inputPos,
		OutputType:                payment.OutputType,
		OutputGuardPreimage:       f.owner.Bytes(),
		CompetingTx:               txBytes,
		CompetingTxInputIndex:     0,
		CompetingTxPos:            pos,
		CompetingTxInclusionProof: proof,
		CompetingTxWitness:        witness,
	}
}

// includeInFlightTx puts the disputed transaction itself into a child block
// and returns its position and proof, for the respond path.
func (f *gameFixture) includeInFlightTx(blockNum uint64) (position.Position, []byte) {
	f.t.Helper()
	tree, err := merkle.NewTree([][]byte{f.inFlightTx})
	require.NoError(f.t, err)
	require.NoError(f.t, f.fw.AddBlock(blockNum, protocol.BlockInfo{Root: tree.Root(), Timestamp: 1}))
	rawProof, err := tree.Proof(0)
	require.NoError(f.t, err)
	return position.MustEncode(blockNum, 0, 0), merkle.ProofToBytes(rawProof)
}

func (f *gameFixture) exitState() *protocol.InFlightExit {
	f.t.Helper()
	exit, err := f.store.Get(f.exitID)
	require.NoError(f.t, err)
	return exit
}

func TestChallengeScenarios(t *testing.T) {
	f := newGameFixture(t)

	// Scenario A: first competitor accepted, exit flips non-canonical.
	txA, posA, proofA := f.competitor(10, 5000)
	argsA := f.challengeArgs(txA, posA, proofA)
	require.NoError(t, f.controller.Challenge(f.ctx, argsA))
	state := f.exitState()
	require.False(t, state.IsCanonical)
	require.Equal(t, posA, state.OldestCompetitor.Unwrap())
	require.Equal(t, argsA.Challenger, state.BondOwner)

	// Scenario B: a later competitor is rejected even with valid proofs.
	txB, posB, proofB := f.competitor(11, 6000)
	err := f.controller.Challenge(f.ctx, f.challengeArgs(txB, posB, proofB))
	require.ErrorIs(t, err, ErrCompetitorTooLate)
	require.Equal(t, posA, f.exitState().OldestCompetitor.Unwrap())

	// Scenario C: an earlier competitor replaces the recorded one.
	txC, posC, proofC := f.competitor(12, 4000)
	argsC := f.challengeArgs(txC, posC, proofC)
	require.NoError(t, f.controller.Challenge(f.ctx, argsC))
	state = f.exitState()
	require.False(t, state.IsCanonical)
	require.Equal(t, posC, state.OldestCompetitor.Unwrap())
	require.Equal(t, argsC.Challenger, state.BondOwner)

	// Scenario D: a rebuttal proving earlier inclusion restores canonicity.
	respPos, respProof := f.includeInFlightTx(3000)
	responder := testhelpers.RandomAddress()
	require.NoError(t, f.controller.Respond(f.ctx, RespondArgs{
		Responder:      responder,
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  respPos,
		InclusionProof: respProof,
	}))
	state = f.exitState()
	require.True(t, state.IsCanonical)
	require.Equal(t, respPos, state.OldestCompetitor.Unwrap())
	require.Equal(t, responder, state.BondOwner)
}

func TestRespondNotEarlierIsRejected(t *testing.T) {
	// Scenario E on fresh state: competitor at block 4000, respond from 4500.
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(20, 4000)
	require.NoError(t, f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, pos, proof)))

	respPos, respProof := f.includeInFlightTx(4500)
	err := f.controller.Respond(f.ctx, RespondArgs{
		Responder:      testhelpers.RandomAddress(),
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  respPos,
		InclusionProof: respProof,
	})
	require.ErrorIs(t, err, ErrResponseTooLate)
	state := f.exitState()
	require.False(t, state.IsCanonical)
	require.Equal(t, pos, state.OldestCompetitor.Unwrap())
}

func TestChallengeOutsideFirstPhaseAlwaysFails(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(30, 5000)
	args := f.challengeArgs(txBytes, pos, proof)

	f.clock.Set(exitStart + minExitPeriod/2)
	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrNotFirstPhase)
	require.True(t, f.exitState().IsCanonical)
}

func TestChallengeUnknownExit(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(31, 5000)
	args := f.challengeArgs(txBytes, pos, proof)
	args.InFlightTx = testhelpers.RandomSlice(80)

	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrExitNotFound)

	err = f.controller.Respond(f.ctx, RespondArgs{
		Responder:  testhelpers.RandomAddress(),
		InFlightTx: testhelpers.RandomSlice(80),
	})
	require.ErrorIs(t, err, ErrExitNotFound)
}

func TestCompetingWithItselfIsRejected(t *testing.T) {
	f := newGameFixture(t)
	args := f.challengeArgs(f.inFlightTx, 0, nil)
	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrSameTransaction)
}

// failingCondition aborts the test if the controller consults it.
type failingCondition struct {
	t *testing.T
}

func (fc failingCondition) Verify(context.Context, protocol.SpendRequest) (bool, error) {
	fc.t.Fatal("spending condition consulted before input matching")
	return false, nil
}

func TestInputMismatchRejectsBeforeCryptography(t *testing.T) {
	// Scenario F: a claimed input that does not resolve to the stored
	// output identifier fails before any spending-condition work.
	f := newGameFixture(t)

	guards := protocol.NewMapGuardRegistry()
	require.NoError(t, guards.Register(payment.OutputType, payment.NewGuardHandler()))
	spends := protocol.NewMapSpendRegistry()
	require.NoError(t, spends.Register(payment.OutputType, payment.TxType, failingCondition{t: t}))
	controller := NewController(f.store, f.fw, guards, spends, payment.TxType,
		WithTimeReference(f.clock))

	txBytes, pos, proof := f.competitor(32, 5000)
	args := f.challengeArgs(txBytes, pos, proof)
	args.InputTx = f.paymentTx(nil, f.owner, 99).MustEncode()

	err := controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrInputMismatch)

	// Out-of-range declared input index is also a malformed dispute.
	args = f.challengeArgs(txBytes, pos, proof)
	args.InFlightTxInputIndex = 4
	err = controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, protocol.ErrInputIndexRange)
}

func TestDepositInputUsesDepositDerivation(t *testing.T) {
	f := newGameFixture(t)

	depositPos := position.MustEncode(1001, 0, 0)
	require.True(t, depositPos.IsDeposit(childBlockInterval))
	depositTxBytes := f.paymentTx(nil, f.owner, 40).MustEncode()
	inFlight := f.paymentTx([]position.Position{depositPos}, testhelpers.RandomAddress(), 41).MustEncode()
	exitID := protocol.ComputeExitID(inFlight)
	require.NoError(t, f.store.Put(exitID, &protocol.InFlightExit{
		ExitStart:        exitStart,
		IsCanonical:      true,
		OldestCompetitor: option.None[position.Position](),
		Inputs:           []protocol.OutputID{protocol.DepositOutputID(depositTxBytes, 0, depositPos)},
	}))

	competitor := f.paymentTx([]position.Position{depositPos}, testhelpers.RandomAddress(), 42)
	competitorBytes := competitor.MustEncode()
	witness, err := payment.SignSpend(f.ownerKey, competitorBytes)
	require.NoError(t, err)

	require.NoError(t, f.controller.Challenge(f.ctx, ChallengeArgs{
		Challenger:            testhelpers.RandomAddress(),
		InFlightTx:            inFlight,
		InFlightTxInputIndex:  0,
		InputTx:               depositTxBytes,
		InputUtxoPos:          depositPos,
		OutputType:            payment.OutputType,
		OutputGuardPreimage:   f.owner.Bytes(),
		CompetingTx:           competitorBytes,
		CompetingTxInputIndex: 0,
		CompetingTxWitness:    witness,
	}))

	exit, err := f.store.Get(exitID)
	require.NoError(t, err)
	require.False(t, exit.IsCanonical)
	require.Equal(t, position.NonInclusion, exit.OldestCompetitor.Unwrap())
}

func TestUnregisteredTypesFailClosed(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(50, 5000)

	args := f.challengeArgs(txBytes, pos, proof)
	args.OutputType = 9
	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrNoSpendingCondition)
}

func TestInvalidGuardPreimage(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(51, 5000)
	args := f.challengeArgs(txBytes, pos, proof)
	args.OutputGuardPreimage = testhelpers.RandomAddress().Bytes()

	// The payment spending condition does not consume the preimage, so the
	// failure surfaces at guard validation.
	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrInvalidPreimage)
}

func TestUnprovenSpendIsRejected(t *testing.T) {
	f := newGameFixture(t)
	// A competitor that spends a different input entirely.
	other := f.paymentTx([]position.Position{position.MustEncode(2000, 0, 0)}, testhelpers.RandomAddress(), 52)
	otherBytes := other.MustEncode()
	args := f.challengeArgs(otherBytes, 0, nil)
	err := f.controller.Challenge(f.ctx, args)
	require.ErrorIs(t, err, ErrSpendNotProven)
}

func TestSelfFinalizingCompetitorRanksBehindIncludedOnes(t *testing.T) {
	f := newGameFixture(t)

	// Positionless competitor: accepted, recorded at the non-inclusion rank.
	txBytes, _, _ := f.competitor(60, 0)
	require.NoError(t, f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, 0, nil)))
	require.Equal(t, position.NonInclusion, f.exitState().OldestCompetitor.Unwrap())

	// A second positionless competitor carries no new information.
	txBytes2, _, _ := f.competitor(61, 0)
	err := f.controller.Challenge(f.ctx, f.challengeArgs(txBytes2, 0, nil))
	require.ErrorIs(t, err, ErrCompetitorTooLate)

	// Any included competitor outranks the positionless one.
	txBytes3, pos3, proof3 := f.competitor(62, 9000)
	require.NoError(t, f.controller.Challenge(f.ctx, f.challengeArgs(txBytes3, pos3, proof3)))
	require.Equal(t, pos3, f.exitState().OldestCompetitor.Unwrap())
}

func TestPositionlessCompetitorRequiresSelfFinalizingProtocol(t *testing.T) {
	f := newGameFixture(t)
	tx := f.paymentTx([]position.Position{f.inputPos}, testhelpers.RandomAddress(), 70)
	tx.TxType = uint64(mvpTxType)
	txBytes := tx.MustEncode()

	err := f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, 0, nil))
	require.ErrorIs(t, err, finalization.ErrNotSelfFinalizing)
	require.True(t, f.exitState().IsCanonical)
}

func TestChallengeWithBadInclusionProof(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(80, 5000)
	tampered := append([]byte{}, proof...)
	tampered[0] ^= 0xff

	err := f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, pos, tampered))
	require.ErrorIs(t, err, finalization.ErrNotIncluded)
	require.True(t, f.exitState().IsCanonical)
}

func TestRespondRequiresRecordedCompetitor(t *testing.T) {
	f := newGameFixture(t)
	respPos, respProof := f.includeInFlightTx(3000)
	err := f.controller.Respond(f.ctx, RespondArgs{
		Responder:      testhelpers.RandomAddress(),
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  respPos,
		InclusionProof: respProof,
	})
	require.ErrorIs(t, err, ErrNoCompetitor)
}

func TestRespondWithForgedProofFails(t *testing.T) {
	f := newGameFixture(t)
	txBytes, pos, proof := f.competitor(81, 4000)
	require.NoError(t, f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, pos, proof)))

	respPos, respProof := f.includeInFlightTx(3000)
	tampered := append([]byte{}, respProof...)
	tampered[5] ^= 0xff
	err := f.controller.Respond(f.ctx, RespondArgs{
		Responder:      testhelpers.RandomAddress(),
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  respPos,
		InclusionProof: tampered,
	})
	require.ErrorIs(t, err, ErrNotIncluded)

	// Unknown block for the claimed position.
	err = f.controller.Respond(f.ctx, RespondArgs{
		Responder:      testhelpers.RandomAddress(),
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  position.MustEncode(3500, 0, 0),
		InclusionProof: respProof,
	})
	require.ErrorIs(t, err, protocol.ErrUnknownBlock)

	// State unchanged by the failed rebuttals.
	state := f.exitState()
	require.False(t, state.IsCanonical)
	require.Equal(t, pos, state.OldestCompetitor.Unwrap())
}

func TestCompetitorPositionIsMonotonicallyNonIncreasing(t *testing.T) {
	f := newGameFixture(t)
	blockNums := []uint64{9000, 6000, 8000, 4000, 7000, 2000}
	lowest := position.NonInclusion
	for i, blockNum := range blockNums {
		txBytes, pos, proof := f.competitor(byte(90+i), blockNum)
		err := f.controller.Challenge(f.ctx, f.challengeArgs(txBytes, pos, proof))
		if pos.Before(lowest) {
			require.NoError(t, err)
			lowest = pos
		} else {
			require.ErrorIs(t, err, ErrCompetitorTooLate)
		}
		require.Equal(t, lowest, f.exitState().OldestCompetitor.Unwrap())
	}
}

func TestNotificationsAreEmitted(t *testing.T) {
	f := newGameFixture(t)
	challenged := f.controller.SubscribeChallenged()
	defer challenged.Close()
	responded := f.controller.SubscribeResponded()
	defer responded.Close()

	ctx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
	defer cancel()

	txBytes, pos, proof := f.competitor(95, 5000)
	args := f.challengeArgs(txBytes, pos, proof)
	require.NoError(t, f.controller.Challenge(ctx, args))

	ev, err := challenged.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, args.Challenger, ev.Challenger)
	require.Equal(t, plasmatx.HashBytes(f.inFlightTx), ev.TxHash)
	require.Equal(t, pos, ev.CompetitorPosition)

	respPos, respProof := f.includeInFlightTx(3000)
	respArgs := RespondArgs{
		Responder:      testhelpers.RandomAddress(),
		InFlightTx:     f.inFlightTx,
		InFlightTxPos:  respPos,
		InclusionProof: respProof,
	}
	require.NoError(t, f.controller.Respond(ctx, respArgs))

	rev, err := responded.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, respArgs.Responder, rev.Responder)
	require.Equal(t, plasmatx.HashBytes(f.inFlightTx), rev.TxHash)
	require.Equal(t, respPos, rev.RespondedPosition)
}
