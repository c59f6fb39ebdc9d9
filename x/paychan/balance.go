package paychan

import (
	"math/big"

	"github.com/iov-one/simplex/errors"
)

// Balance is the spendable and locked capacity of a channel, seen from the
// local party.
type Balance struct {
	FreeSending     *big.Int
	FreeReceiving   *big.Int
	LockedSending   *big.Int
	LockedReceiving *big.Int
}

// CalculateBalance derives the channel balance from the on-chain snapshot
// and both simplex states. The sending side uses the latest outgoing state,
// so that funds locked by an unacknowledged proposal cannot be spent twice.
// The receiving side only counts transfers cosigned by the peer.
//
// A negative free capacity can only result from a corrupted record and is
// reported as ErrOverflow.
func CalculateBalance(pc *PaymentChannel) (*Balance, error) {
	in, err := DecodeSimplex(pc.InState)
	if err != nil {
		return nil, errors.Wrap(err, "incoming state")
	}
	out, err := DecodeSimplex(pc.LatestOut())
	if err != nil {
		return nil, errors.Wrap(err, "outgoing state")
	}
	cosigned := out
	if pc.OutProposal != nil {
		if cosigned, err = DecodeSimplex(pc.OutState); err != nil {
			return nil, errors.Wrap(err, "cosigned outgoing state")
		}
	}

	inTransfer := TransferAmount(in.TransferToPeer)
	outTransfer := TransferAmount(out.TransferToPeer)
	inPending := TransferAmount(in.TotalPendingAmount)
	outPending := TransferAmount(out.TotalPendingAmount)
	oc := pc.OnChain

	freeSending := new(big.Int).Set(AmountFromBytes(oc.SelfDeposit))
	freeSending.Sub(freeSending, AmountFromBytes(oc.SelfWithdrawal))
	freeSending.Sub(freeSending, AmountFromBytes(oc.SelfPendingWithdrawal))
	freeSending.Add(freeSending, inTransfer)
	freeSending.Sub(freeSending, outTransfer)
	freeSending.Sub(freeSending, outPending)
	if freeSending.Sign() < 0 {
		return nil, errors.Wrapf(errors.ErrOverflow, "free sending capacity %s", freeSending)
	}

	freeReceiving := new(big.Int).Set(AmountFromBytes(oc.PeerDeposit))
	freeReceiving.Sub(freeReceiving, AmountFromBytes(oc.PeerWithdrawal))
	freeReceiving.Sub(freeReceiving, AmountFromBytes(oc.PeerPendingWithdrawal))
	freeReceiving.Add(freeReceiving, TransferAmount(cosigned.TransferToPeer))
	freeReceiving.Sub(freeReceiving, inTransfer)
	freeReceiving.Sub(freeReceiving, inPending)
	if freeReceiving.Sign() < 0 {
		return nil, errors.Wrapf(errors.ErrOverflow, "free receiving capacity %s", freeReceiving)
	}

	return &Balance{
		FreeSending:     freeSending,
		FreeReceiving:   freeReceiving,
		LockedSending:   outPending,
		LockedReceiving: inPending,
	}, nil
}
