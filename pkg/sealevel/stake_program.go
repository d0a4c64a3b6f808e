package sealevel

import (
	"bytes"
	"encoding/binary"

	"github.com/Overclock-Validator/stakecore/pkg/base58"
	"github.com/Overclock-Validator/stakecore/pkg/features"
	"github.com/Overclock-Validator/stakecore/pkg/metrics"
	"github.com/Overclock-Validator/stakecore/pkg/safemath"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

var StakeProgramAddr = solana.PublicKey(base58.MustDecodeFromString("Stake11111111111111111111111111111111111111"))
var StakeProgramConfigAddr = solana.PublicKey(base58.MustDecodeFromString("StakeConfig11111111111111111111111111111111"))

// packets are capped at 1232 bytes, instruction data can never be larger
const stakeInstrMaxDataLen = 1232

const (
	StakeProgramInstrTypeInitialize = iota
	StakeProgramInstrTypeAuthorize
	StakeProgramInstrTypeDelegateStake
	StakeProgramInstrTypeSplit
	StakeProgramInstrTypeWithdraw
	StakeProgramInstrTypeDeactivate
	StakeProgramInstrTypeSetLockup
	StakeProgramInstrTypeMerge
	StakeProgramInstrTypeAuthorizeWithSeed
	StakeProgramInstrTypeInitializeChecked
	StakeProgramInstrTypeAuthorizeChecked
	StakeProgramInstrTypeAuthorizeCheckedWithSeed
	StakeProgramInstrTypeSetLockupChecked
	StakeProgramInstrTypeGetMinimumDelegation
	StakeProgramInstrTypeDeactivateDelinquent
	StakeProgramInstrTypeRedelegate
	StakeProgramInstrTypeMoveStake
	StakeProgramInstrTypeMoveLamports
)

var stakeInstrNames = map[uint32]string{
	StakeProgramInstrTypeInitialize:               "Initialize",
	StakeProgramInstrTypeAuthorize:                "Authorize",
	StakeProgramInstrTypeDelegateStake:            "DelegateStake",
	StakeProgramInstrTypeSplit:                    "Split",
	StakeProgramInstrTypeWithdraw:                 "Withdraw",
	StakeProgramInstrTypeDeactivate:               "Deactivate",
	StakeProgramInstrTypeSetLockup:                "SetLockup",
	StakeProgramInstrTypeMerge:                    "Merge",
	StakeProgramInstrTypeAuthorizeWithSeed:        "AuthorizeWithSeed",
	StakeProgramInstrTypeInitializeChecked:        "InitializeChecked",
	StakeProgramInstrTypeAuthorizeChecked:         "AuthorizeChecked",
	StakeProgramInstrTypeAuthorizeCheckedWithSeed: "AuthorizeCheckedWithSeed",
	StakeProgramInstrTypeSetLockupChecked:         "SetLockupChecked",
	StakeProgramInstrTypeGetMinimumDelegation:     "GetMinimumDelegation",
	StakeProgramInstrTypeDeactivateDelinquent:     "DeactivateDelinquent",
	StakeProgramInstrTypeRedelegate:               "Redelegate",
	StakeProgramInstrTypeMoveStake:                "MoveStake",
	StakeProgramInstrTypeMoveLamports:             "MoveLamports",
}

func StakeInstrName(instrType uint32) string {
	if name, ok := stakeInstrNames[instrType]; ok {
		return name
	}
	return "Unknown"
}

func StakeInstrTypeByName(name string) (uint32, bool) {
	for instrType, instrName := range stakeInstrNames {
		if instrName == name {
			return instrType, true
		}
	}
	return 0, false
}

type StakeInstrInitialize struct {
	Authorized Authorized
	Lockup     StakeLockup
}

type StakeInstrAuthorize struct {
	Pubkey         solana.PublicKey
	StakeAuthorize uint32
}

type StakeInstrAuthorizeWithSeed struct {
	NewAuthorizedPubkey solana.PublicKey
	StakeAuthorize      uint32
	AuthoritySeed       string
	AuthorityOwner      solana.PublicKey
}

type StakeInstrAuthorizeChecked struct {
	StakeAuthorize uint32
}

type StakeInstrAuthorizeCheckedWithSeed struct {
	StakeAuthorize uint32
	AuthoritySeed  string
	AuthorityOwner solana.PublicKey
}

type StakeInstrSetLockupChecked struct {
	UnixTimestamp *int64
	Epoch         *uint64
}

type StakeInstrLamports struct {
	Lamports uint64
}

func (initialize *StakeInstrInitialize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := initialize.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}
	return initialize.Lockup.UnmarshalWithDecoder(decoder)
}

func (initialize *StakeInstrInitialize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := initialize.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}
	return initialize.Lockup.MarshalWithEncoder(encoder)
}

func readStakeAuthorize(decoder *bin.Decoder) (uint32, error) {
	stakeAuthorize, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return 0, err
	}
	if stakeAuthorize != StakeAuthorizeStaker && stakeAuthorize != StakeAuthorizeWithdrawer {
		return 0, InstrErrInvalidInstructionData
	}
	return stakeAuthorize, nil
}

func (auth *StakeInstrAuthorize) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &auth.Pubkey)
	if err != nil {
		return err
	}
	auth.StakeAuthorize, err = readStakeAuthorize(decoder)
	return err
}

func (authWithSeed *StakeInstrAuthorizeWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &authWithSeed.NewAuthorizedPubkey)
	if err != nil {
		return err
	}

	authWithSeed.StakeAuthorize, err = readStakeAuthorize(decoder)
	if err != nil {
		return err
	}

	authWithSeed.AuthoritySeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	return readPubkey(decoder, &authWithSeed.AuthorityOwner)
}

func (authChecked *StakeInstrAuthorizeChecked) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authChecked.StakeAuthorize, err = readStakeAuthorize(decoder)
	return err
}

func (authCheckedWithSeed *StakeInstrAuthorizeCheckedWithSeed) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	authCheckedWithSeed.StakeAuthorize, err = readStakeAuthorize(decoder)
	if err != nil {
		return err
	}

	authCheckedWithSeed.AuthoritySeed, err = decoder.ReadRustString()
	if err != nil {
		return err
	}

	return readPubkey(decoder, &authCheckedWithSeed.AuthorityOwner)
}

func (lockup *StakeInstrSetLockupChecked) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var args StakeLockupArgs
	err := args.unmarshal(decoder, false)
	if err != nil {
		return err
	}
	lockup.UnixTimestamp = args.UnixTimestamp
	lockup.Epoch = args.Epoch
	return nil
}

func (l *StakeInstrLamports) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	l.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func (auth *StakeInstrAuthorize) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(auth.Pubkey[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteUint32(auth.StakeAuthorize, bin.LE)
}

func (authChecked *StakeInstrAuthorizeChecked) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint32(authChecked.StakeAuthorize, bin.LE)
}

func writeRustString(encoder *bin.Encoder, s string) error {
	err := encoder.WriteUint64(uint64(len(s)), bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteBytes([]byte(s), false)
}

func (authWithSeed *StakeInstrAuthorizeWithSeed) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(authWithSeed.NewAuthorizedPubkey[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteUint32(authWithSeed.StakeAuthorize, bin.LE)
	if err != nil {
		return err
	}
	err = writeRustString(encoder, authWithSeed.AuthoritySeed)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(authWithSeed.AuthorityOwner[:], false)
}

func (lockup *StakeInstrSetLockupChecked) MarshalWithEncoder(encoder *bin.Encoder) error {
	args := StakeLockupArgs{UnixTimestamp: lockup.UnixTimestamp, Epoch: lockup.Epoch}
	return args.marshal(encoder, false)
}

func (l *StakeInstrLamports) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(l.Lamports, bin.LE)
}

// getOptionalPubkey returns the key at instrAcctIdx if the instruction has
// that many accounts, and nil otherwise.
func getOptionalPubkey(instrCtx *InstructionCtx, instrAcctIdx uint64, mustBeSigner bool) (*solana.PublicKey, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return nil, nil
	}

	if mustBeSigner {
		isSigner, err := instrCtx.IsInstructionAccountSigner(instrAcctIdx)
		if err != nil {
			return nil, err
		}
		if !isSigner {
			return nil, InstrErrMissingRequiredSignature
		}
	}

	pubkey, err := instrCtx.KeyOfInstructionAccount(instrAcctIdx)
	if err != nil {
		return nil, err
	}
	return &pubkey, nil
}

func checkSysvarAccount(instrCtx *InstructionCtx, instrAcctIdx uint64, sysvarAddr [32]byte) error {
	pk, err := instrCtx.KeyOfInstructionAccount(instrAcctIdx)
	if err != nil {
		return err
	}
	if pk != solana.PublicKey(sysvarAddr) {
		return InstrErrInvalidArgument
	}
	return nil
}

func readClockWithAccountCheck(execCtx *ExecutionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64) (SysvarClock, error) {
	err := checkSysvarAccount(instrCtx, instrAcctIdx, SysvarClockAddr)
	if err != nil {
		return SysvarClock{}, err
	}
	return ReadClockSysvar(execCtx.Accounts)
}

// currentEpoch is the clock's epoch, which feature gates are checked against.
func currentEpoch(execCtx *ExecutionCtx) (uint64, error) {
	clock, err := ReadClockSysvar(execCtx.Accounts)
	if err != nil {
		return 0, err
	}
	return clock.Epoch, nil
}

func readStakeHistoryWithAccountCheck(execCtx *ExecutionCtx, instrCtx *InstructionCtx, instrAcctIdx uint64, clock *SysvarClock) (StakeHistoryGetter, error) {
	err := checkSysvarAccount(instrCtx, instrAcctIdx, SysvarStakeHistoryAddr)
	if err != nil {
		return nil, err
	}
	return readStakeHistory(execCtx, clock)
}

func readStakeHistory(execCtx *ExecutionCtx, clock *SysvarClock) (StakeHistoryGetter, error) {
	stakeHistory, err := ReadStakeHistorySysvar(execCtx.Accounts)
	if err != nil {
		return nil, err
	}
	return EpochBoundedHistory{Current: clock.Epoch, Inner: stakeHistory}, nil
}

// StakeProgramExecute runs the stake instruction in instrCtx. Every account
// write is staged and only committed to execCtx.Accounts if the whole
// instruction succeeds.
func StakeProgramExecute(execCtx *ExecutionCtx, instrCtx *InstructionCtx) error {
	instrType, err := peekInstrType(instrCtx.Data)
	instrName := "Unknown"
	if err == nil {
		instrName = StakeInstrName(instrType)
	}

	if err == nil {
		err = executeStakeInstruction(execCtx, instrCtx, instrType)
	}
	if err == nil {
		err = instrCtx.commit(execCtx)
	}

	if err != nil {
		instrCtx.discard()
		klog.V(2).Infof("stake instruction %s failed: %s", instrName, err)
		metrics.StakeInstructionsTotal.WithLabelValues(instrName, metrics.ResultError).Inc()
		return err
	}

	metrics.StakeInstructionsTotal.WithLabelValues(instrName, metrics.ResultSuccess).Inc()
	return nil
}

func peekInstrType(data []byte) (uint32, error) {
	if len(data) > stakeInstrMaxDataLen || len(data) < 4 {
		return 0, InstrErrInvalidInstructionData
	}
	return binary.LittleEndian.Uint32(data[:4]), nil
}

func executeStakeInstruction(execCtx *ExecutionCtx, instrCtx *InstructionCtx, instrType uint32) error {
	decoder := bin.NewBinDecoder(instrCtx.Data[4:])
	signers := instrCtx.Signers()
	f := execCtx.Features

	getStakeAccount := func() (*BorrowedAccount, error) {
		acct, err := instrCtx.BorrowInstructionAccount(execCtx, 0)
		if err != nil {
			return nil, err
		}
		if acct.Owner() != StakeProgramAddr {
			return nil, InstrErrInvalidAccountOwner
		}
		return acct, nil
	}

	if instrType != StakeProgramInstrTypeGetMinimumDelegation {
		active, err := epochRewardsActive(execCtx)
		if err != nil {
			return err
		}
		if active {
			return StakeErrEpochRewardsActive
		}
	}

	switch instrType {
	case StakeProgramInstrTypeInitialize:
		var initialize StakeInstrInitialize
		err := initialize.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = checkSysvarAccount(instrCtx, 1, SysvarRentAddr)
		if err != nil {
			return err
		}
		rent, err := ReadRentSysvar(execCtx.Accounts)
		if err != nil {
			return err
		}

		return StakeProgramInitialize(me, initialize.Authorized, initialize.Lockup, &rent)

	case StakeProgramInstrTypeInitializeChecked:
		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(4)
		if err != nil {
			return err
		}

		var authorized Authorized
		authorized.Staker, err = instrCtx.KeyOfInstructionAccount(2)
		if err != nil {
			return err
		}
		authorized.Withdrawer, err = instrCtx.KeyOfInstructionAccount(3)
		if err != nil {
			return err
		}
		isSigner, err := instrCtx.IsInstructionAccountSigner(3)
		if err != nil {
			return err
		}
		if !isSigner {
			return InstrErrMissingRequiredSignature
		}

		err = checkSysvarAccount(instrCtx, 1, SysvarRentAddr)
		if err != nil {
			return err
		}
		rent, err := ReadRentSysvar(execCtx.Accounts)
		if err != nil {
			return err
		}

		return StakeProgramInitialize(me, authorized, StakeLockup{}, &rent)

	case StakeProgramInstrTypeAuthorize:
		var authorize StakeInstrAuthorize
		err := authorize.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 1)
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(3)
		if err != nil {
			return err
		}

		custodianPubkey, err := getOptionalPubkey(instrCtx, 3, false)
		if err != nil {
			return err
		}

		return StakeProgramAuthorize(me, signers, authorize.Pubkey, authorize.StakeAuthorize, &clock, custodianPubkey)

	case StakeProgramInstrTypeAuthorizeWithSeed:
		var authorizeWithSeed StakeInstrAuthorizeWithSeed
		err := authorizeWithSeed.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(2)
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 2)
		if err != nil {
			return err
		}

		custodianPubkey, err := getOptionalPubkey(instrCtx, 3, false)
		if err != nil {
			return err
		}

		return StakeProgramAuthorizeWithSeed(instrCtx, me, 1, authorizeWithSeed.AuthoritySeed, authorizeWithSeed.AuthorityOwner, authorizeWithSeed.NewAuthorizedPubkey, authorizeWithSeed.StakeAuthorize, &clock, custodianPubkey)

	case StakeProgramInstrTypeAuthorizeChecked:
		var authorizeChecked StakeInstrAuthorizeChecked
		err := authorizeChecked.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 1)
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(4)
		if err != nil {
			return err
		}

		newAuthority, err := getOptionalPubkey(instrCtx, 3, true)
		if err != nil {
			return err
		}

		custodianPubkey, err := getOptionalPubkey(instrCtx, 4, false)
		if err != nil {
			return err
		}

		return StakeProgramAuthorize(me, signers, *newAuthority, authorizeChecked.StakeAuthorize, &clock, custodianPubkey)

	case StakeProgramInstrTypeAuthorizeCheckedWithSeed:
		var authorizeCheckedWithSeed StakeInstrAuthorizeCheckedWithSeed
		err := authorizeCheckedWithSeed.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(2)
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 2)
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(4)
		if err != nil {
			return err
		}

		newAuthority, err := getOptionalPubkey(instrCtx, 3, true)
		if err != nil {
			return err
		}

		custodianPubkey, err := getOptionalPubkey(instrCtx, 4, false)
		if err != nil {
			return err
		}

		return StakeProgramAuthorizeWithSeed(instrCtx, me, 1, authorizeCheckedWithSeed.AuthoritySeed, authorizeCheckedWithSeed.AuthorityOwner, *newAuthority, authorizeCheckedWithSeed.StakeAuthorize, &clock, custodianPubkey)

	case StakeProgramInstrTypeDelegateStake:
		_, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(2)
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 2)
		if err != nil {
			return err
		}

		stakeHistory, err := readStakeHistoryWithAccountCheck(execCtx, instrCtx, 3, &clock)
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(5)
		if err != nil {
			return err
		}

		if !f.IsActive(features.ReduceStakeWarmupCooldown, clock.Epoch) {
			configKey, err := instrCtx.KeyOfInstructionAccount(4)
			if err != nil {
				return err
			}
			if configKey != StakeProgramConfigAddr {
				return InstrErrInvalidArgument
			}
		}

		return StakeProgramDelegate(execCtx, instrCtx, 0, 1, &clock, stakeHistory, signers)

	case StakeProgramInstrTypeDeactivate:
		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 1)
		if err != nil {
			return err
		}

		stakeHistory, err := readStakeHistory(execCtx, &clock)
		if err != nil {
			return err
		}

		return StakeProgramDeactivate(me, &clock, stakeHistory, signers, f)

	case StakeProgramInstrTypeSetLockup:
		var lockupArgs StakeLockupArgs
		err := lockupArgs.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		clock, err := ReadClockSysvar(execCtx.Accounts)
		if err != nil {
			return err
		}

		return StakeProgramSetLockup(me, &lockupArgs, signers, &clock)

	case StakeProgramInstrTypeSetLockupChecked:
		var lockupChecked StakeInstrSetLockupChecked
		err := lockupChecked.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		me, err := getStakeAccount()
		if err != nil {
			return err
		}

		custodianPubkey, err := getOptionalPubkey(instrCtx, 2, true)
		if err != nil {
			return err
		}

		lockupArgs := StakeLockupArgs{UnixTimestamp: lockupChecked.UnixTimestamp, Epoch: lockupChecked.Epoch, Custodian: custodianPubkey}

		clock, err := ReadClockSysvar(execCtx.Accounts)
		if err != nil {
			return err
		}

		return StakeProgramSetLockup(me, &lockupArgs, signers, &clock)

	case StakeProgramInstrTypeMerge:
		_, err := getStakeAccount()
		if err != nil {
			return err
		}

		err = instrCtx.CheckNumOfInstructionAccounts(2)
		if err != nil {
			return err
		}

		clock, err := readClockWithAccountCheck(execCtx, instrCtx, 2)
		if err != nil {
			return err
		}

		stakeHistory, err := readStakeHistoryWithAccountCheck(execCtx, instrCtx, 3, &clock)
		if err != nil {
			return err
		}

		return StakeProgramMerge(execCtx, instrCtx, 0, 1, &clock, stakeHistory, signers)

	case StakeProgramInstrTypeMoveStake, StakeProgramInstrTypeMoveLamports:
		epoch, err := currentEpoch(execCtx)
		if err != nil {
			return err
		}
		if !f.IsActive(features.MoveStakeAndMoveLamportsIxs, epoch) {
			return InstrErrInvalidInstructionData
		}

		var args StakeInstrLamports
		err = args.UnmarshalWithDecoder(decoder)
		if err != nil {
			return InstrErrInvalidInstructionData
		}

		err = instrCtx.CheckNumOfInstructionAccounts(3)
		if err != nil {
			return err
		}

		if instrType == StakeProgramInstrTypeMoveStake {
			return StakeProgramMoveStake(execCtx, instrCtx, 0, args.Lamports, 1, 2)
		}
		return StakeProgramMoveLamports(execCtx, instrCtx, 0, args.Lamports, 1, 2)

	case StakeProgramInstrTypeGetMinimumDelegation:
		epoch, err := currentEpoch(execCtx)
		if err != nil {
			return err
		}
		minimumDelegation := make([]byte, 8)
		binary.LittleEndian.PutUint64(minimumDelegation, MinimumDelegation(f, epoch))
		execCtx.SetReturnData(minimumDelegation)
		return nil

	default:
		// Split, Withdraw and the delinquency and redelegation instructions
		// move value out of the stake core and are handled elsewhere
		return InstrErrInvalidInstructionData
	}
}

func StakeProgramInitialize(stakeAcct *BorrowedAccount, authorized Authorized, lockup StakeLockup, rent *SysvarRent) error {
	if len(stakeAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	state, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusUninitialized {
		return InstrErrInvalidAccountData
	}

	rentExemptReserve := rent.MinimumBalance(uint64(len(stakeAcct.Data())))
	if stakeAcct.Lamports() < rentExemptReserve {
		return InstrErrInsufficientFunds
	}

	meta := Meta{RentExemptReserve: rentExemptReserve, Authorized: authorized, Lockup: lockup}
	return stakeAcct.SetStakeState(NewInitializedStakeState(meta))
}

func StakeProgramAuthorize(stakeAcct *BorrowedAccount, signers []solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, clock *SysvarClock, custodianPubkey *solana.PublicKey) error {
	state, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusStake:
		meta := &state.Stake.Meta
		err = meta.Authorized.Authorize(signers, newAuthority, stakeAuthorize, &meta.Lockup, clock, custodianPubkey)

	case StakeStateV2StatusInitialized:
		meta := &state.Initialized.Meta
		err = meta.Authorized.Authorize(signers, newAuthority, stakeAuthorize, &meta.Lockup, clock, custodianPubkey)

	default:
		return InstrErrInvalidAccountData
	}

	if err != nil {
		return err
	}
	return stakeAcct.SetStakeState(state)
}

// StakeProgramAuthorizeWithSeed authorizes on behalf of the address derived
// from the signing base account, seed and owner.
func StakeProgramAuthorizeWithSeed(instrCtx *InstructionCtx, stakeAcct *BorrowedAccount, authorityBaseIndex uint64, authoritySeed string, authorityOwner solana.PublicKey, newAuthority solana.PublicKey, stakeAuthorize uint32, clock *SysvarClock, custodian *solana.PublicKey) error {
	var signers []solana.PublicKey

	isSigner, err := instrCtx.IsInstructionAccountSigner(authorityBaseIndex)
	if err != nil {
		return err
	}

	if isSigner {
		basePubkey, err := instrCtx.KeyOfInstructionAccount(authorityBaseIndex)
		if err != nil {
			return err
		}
		pk, err := solana.CreateWithSeed(basePubkey, authoritySeed, authorityOwner)
		if err != nil {
			return InstrErrInvalidArgument
		}
		signers = append(signers, pk)
	}

	return StakeProgramAuthorize(stakeAcct, signers, newAuthority, stakeAuthorize, clock, custodian)
}

func StakeProgramDelegate(execCtx *ExecutionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, voteAcctIdx uint64, clock *SysvarClock, stakeHistory StakeHistoryGetter, signers []solana.PublicKey) error {
	votePubkey, err := instrCtx.KeyOfInstructionAccount(voteAcctIdx)
	if err != nil {
		return err
	}
	credits, creditsErr := execCtx.VoteCredits.Credits(votePubkey)

	stakeAcct, err := instrCtx.BorrowInstructionAccount(execCtx, stakeAcctIdx)
	if err != nil {
		return err
	}

	state, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}

	f := execCtx.Features

	switch state.Status {
	case StakeStateV2StatusInitialized:
		meta := state.Initialized.Meta
		err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
		if err != nil {
			return err
		}

		stakeAmount, err := ValidateDelegatedAmount(stakeAcct.Lamports(), &meta, f, clock.Epoch)
		if err != nil {
			return err
		}

		if creditsErr != nil {
			return creditsErr
		}

		stake := NewStake(stakeAmount, votePubkey, credits, clock.Epoch)
		return stakeAcct.SetStakeState(NewDelegatedStakeState(meta, stake, StakeFlagsEmpty))

	case StakeStateV2StatusStake:
		meta := state.Stake.Meta
		err = meta.Authorized.Check(signers, StakeAuthorizeStaker)
		if err != nil {
			return err
		}

		stakeAmount, err := ValidateDelegatedAmount(stakeAcct.Lamports(), &meta, f, clock.Epoch)
		if err != nil {
			return err
		}

		if creditsErr != nil {
			return creditsErr
		}

		stake := state.Stake.Stake
		err = RedelegateStake(&stake, stakeAmount, votePubkey, credits, clock.Epoch, stakeHistory, NewRateActivationEpoch(f))
		if err != nil {
			return err
		}

		return stakeAcct.SetStakeState(NewDelegatedStakeState(meta, stake, state.Stake.StakeFlags))

	default:
		return InstrErrInvalidAccountData
	}
}

func StakeProgramDeactivate(stakeAcct *BorrowedAccount, clock *SysvarClock, stakeHistory StakeHistoryGetter, signers []solana.PublicKey, f *features.Features) error {
	state, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}

	if state.Status != StakeStateV2StatusStake {
		return InstrErrInvalidAccountData
	}

	err = state.Stake.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	err = DeactivateStake(&state.Stake.Stake, &state.Stake.StakeFlags, clock.Epoch, stakeHistory, NewRateActivationEpoch(f))
	if err != nil {
		return err
	}

	return stakeAcct.SetStakeState(state)
}

func StakeProgramSetLockup(stakeAcct *BorrowedAccount, lockup *StakeLockupArgs, signers []solana.PublicKey, clock *SysvarClock) error {
	state, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusInitialized:
		err = state.Initialized.Meta.SetLockup(lockup, signers, clock)
	case StakeStateV2StatusStake:
		err = state.Stake.Meta.SetLockup(lockup, signers, clock)
	default:
		return InstrErrInvalidAccountData
	}

	if err != nil {
		return err
	}
	return stakeAcct.SetStakeState(state)
}

func StakeProgramMerge(execCtx *ExecutionCtx, instrCtx *InstructionCtx, stakeAcctIdx uint64, sourceAcctIdx uint64, clock *SysvarClock, stakeHistory StakeHistoryGetter, signers []solana.PublicKey) error {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(execCtx, sourceAcctIdx)
	if err != nil {
		return err
	}

	if sourceAcct.Owner() != StakeProgramAddr {
		return InstrErrIncorrectProgramId
	}

	stakeAcct, err := instrCtx.BorrowInstructionAccount(execCtx, stakeAcctIdx)
	if err != nil {
		return err
	}

	if stakeAcct.Key() == sourceAcct.Key() {
		return InstrErrInvalidArgument
	}

	newRateActivationEpoch := NewRateActivationEpoch(execCtx.Features)

	klog.V(2).Infof("Checking if destination stake is mergeable")
	stakeState, err := stakeAcct.StakeState()
	if err != nil {
		return err
	}
	stakeMergeKind, err := GetMergeKindIfMergeable(stakeState, stakeAcct.Lamports(), clock, stakeHistory, newRateActivationEpoch)
	if err != nil {
		return err
	}

	err = stakeMergeKind.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return err
	}

	klog.V(2).Infof("Checking if source stake is mergeable")
	sourceState, err := sourceAcct.StakeState()
	if err != nil {
		return err
	}
	sourceMergeKind, err := GetMergeKindIfMergeable(sourceState, sourceAcct.Lamports(), clock, stakeHistory, newRateActivationEpoch)
	if err != nil {
		return err
	}

	klog.V(2).Infof("Merging stake accounts")
	mergedState, err := stakeMergeKind.Merge(sourceMergeKind, clock)
	if err != nil {
		return err
	}

	if mergedState != nil {
		err = stakeAcct.SetStakeState(mergedState)
		if err != nil {
			return err
		}
	}

	err = sourceAcct.SetStakeState(&StakeStateV2{Status: StakeStateV2StatusUninitialized})
	if err != nil {
		return err
	}

	lamports := sourceAcct.Lamports()
	err = sourceAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	return stakeAcct.CheckedAddLamports(lamports)
}

func moveStakeOrLamportsSharedChecks(execCtx *ExecutionCtx, instrCtx *InstructionCtx, sourceAcct *BorrowedAccount, lamports uint64, destAcct *BorrowedAccount, stakeAuthorityIdx uint64) (*MergeKind, *MergeKind, error) {
	stakeAuthority, err := instrCtx.KeyOfInstructionAccount(stakeAuthorityIdx)
	if err != nil {
		return nil, nil, err
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(stakeAuthorityIdx)
	if err != nil {
		return nil, nil, err
	}
	if !isSigner {
		return nil, nil, InstrErrMissingRequiredSignature
	}
	signers := []solana.PublicKey{stakeAuthority}

	if sourceAcct.Owner() != StakeProgramAddr || destAcct.Owner() != StakeProgramAddr {
		return nil, nil, InstrErrInvalidAccountOwner
	}

	if sourceAcct.Key() == destAcct.Key() {
		return nil, nil, InstrErrInvalidInstructionData
	}

	if !sourceAcct.IsWritable() || !destAcct.IsWritable() {
		return nil, nil, InstrErrInvalidInstructionData
	}

	if lamports == 0 {
		return nil, nil, InstrErrInvalidArgument
	}

	clock, err := ReadClockSysvar(execCtx.Accounts)
	if err != nil {
		return nil, nil, err
	}
	stakeHistory, err := readStakeHistory(execCtx, &clock)
	if err != nil {
		return nil, nil, err
	}
	newRateActivationEpoch := NewRateActivationEpoch(execCtx.Features)

	sourceState, err := sourceAcct.StakeState()
	if err != nil {
		return nil, nil, err
	}
	sourceMergeKind, err := GetMergeKindIfMergeable(sourceState, sourceAcct.Lamports(), &clock, stakeHistory, newRateActivationEpoch)
	if err != nil {
		return nil, nil, err
	}

	err = sourceMergeKind.Meta.Authorized.Check(signers, StakeAuthorizeStaker)
	if err != nil {
		return nil, nil, err
	}

	destState, err := destAcct.StakeState()
	if err != nil {
		return nil, nil, err
	}
	destMergeKind, err := GetMergeKindIfMergeable(destState, destAcct.Lamports(), &clock, stakeHistory, newRateActivationEpoch)
	if err != nil {
		return nil, nil, err
	}

	err = MetasCanMerge(&sourceMergeKind.Meta, &destMergeKind.Meta, &clock)
	if err != nil {
		return nil, nil, err
	}

	return sourceMergeKind, destMergeKind, nil
}

func borrowMoveAccounts(execCtx *ExecutionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, destAcctIdx uint64) (*BorrowedAccount, *BorrowedAccount, error) {
	sourceAcct, err := instrCtx.BorrowInstructionAccount(execCtx, sourceAcctIdx)
	if err != nil {
		return nil, nil, err
	}
	destAcct, err := instrCtx.BorrowInstructionAccount(execCtx, destAcctIdx)
	if err != nil {
		return nil, nil, err
	}
	return sourceAcct, destAcct, nil
}

// StakeProgramMoveStake moves active stake between two fully active
// accounts delegated to the same vote account, or into an inactive one.
func StakeProgramMoveStake(execCtx *ExecutionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, lamports uint64, destAcctIdx uint64, stakeAuthorityIdx uint64) error {
	sourceAcct, destAcct, err := borrowMoveAccounts(execCtx, instrCtx, sourceAcctIdx, destAcctIdx)
	if err != nil {
		return err
	}

	sourceMergeKind, destMergeKind, err := moveStakeOrLamportsSharedChecks(execCtx, instrCtx, sourceAcct, lamports, destAcct, stakeAuthorityIdx)
	if err != nil {
		return err
	}

	// an account too small for the current record layout cannot hold stake
	if len(sourceAcct.Data()) != StakeStateV2Size || len(destAcct.Data()) != StakeStateV2Size {
		return InstrErrInvalidAccountData
	}

	if sourceMergeKind.Status != MergeKindFullyActive {
		return InstrErrInvalidAccountData
	}
	sourceMeta := sourceMergeKind.Meta
	sourceStake := sourceMergeKind.Stake

	epoch, err := currentEpoch(execCtx)
	if err != nil {
		return err
	}
	minimumDelegation := MinimumDelegation(execCtx.Features, epoch)

	sourceFinalStake, err := safemath.CheckedSubU64(sourceStake.Delegation.StakeLamports, lamports)
	if err != nil {
		return InstrErrInvalidArgument
	}

	if sourceFinalStake != 0 && sourceFinalStake < minimumDelegation {
		return InstrErrInvalidArgument
	}

	var destMeta Meta
	switch destMergeKind.Status {
	case MergeKindFullyActive:
		destMeta = destMergeKind.Meta
		destStake := destMergeKind.Stake

		if sourceStake.Delegation.VoterPubkey != destStake.Delegation.VoterPubkey {
			return StakeErrVoteAddressMismatch
		}

		destFinalStake, err := safemath.CheckedAddU64(destStake.Delegation.StakeLamports, lamports)
		if err != nil {
			return InstrErrArithmeticOverflow
		}

		if destFinalStake < minimumDelegation {
			return InstrErrInvalidArgument
		}

		err = MergeDelegationStakeAndCreditsObserved(&destStake, lamports, sourceStake.CreditsObserved)
		if err != nil {
			return err
		}

		err = destAcct.SetStakeState(NewDelegatedStakeState(destMeta, destStake, StakeFlagsEmpty))
		if err != nil {
			return err
		}

	case MergeKindInactive:
		destMeta = destMergeKind.Meta

		if lamports < minimumDelegation {
			return InstrErrInvalidArgument
		}

		destStake := sourceStake
		destStake.Delegation.StakeLamports = lamports

		err = destAcct.SetStakeState(NewDelegatedStakeState(destMeta, destStake, StakeFlagsEmpty))
		if err != nil {
			return err
		}

	default:
		return InstrErrInvalidAccountData
	}

	if sourceFinalStake == 0 {
		err = sourceAcct.SetStakeState(NewInitializedStakeState(sourceMeta))
	} else {
		sourceStake.Delegation.StakeLamports = sourceFinalStake
		err = sourceAcct.SetStakeState(NewDelegatedStakeState(sourceMeta, sourceStake, StakeFlagsEmpty))
	}
	if err != nil {
		return err
	}

	err = sourceAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	err = destAcct.CheckedAddLamports(lamports)
	if err != nil {
		return err
	}

	if sourceAcct.Lamports() < sourceMeta.RentExemptReserve || destAcct.Lamports() < destMeta.RentExemptReserve {
		klog.V(2).Infof("Delegation calculations violated lamport balance assumptions")
		return InstrErrInvalidArgument
	}

	return nil
}

// StakeProgramMoveLamports moves lamports that are neither delegated nor
// part of the rent exempt reserve.
func StakeProgramMoveLamports(execCtx *ExecutionCtx, instrCtx *InstructionCtx, sourceAcctIdx uint64, lamports uint64, destAcctIdx uint64, stakeAuthorityIdx uint64) error {
	sourceAcct, destAcct, err := borrowMoveAccounts(execCtx, instrCtx, sourceAcctIdx, destAcctIdx)
	if err != nil {
		return err
	}

	sourceMergeKind, _, err := moveStakeOrLamportsSharedChecks(execCtx, instrCtx, sourceAcct, lamports, destAcct, stakeAuthorityIdx)
	if err != nil {
		return err
	}

	var sourceFreeLamports uint64
	switch sourceMergeKind.Status {
	case MergeKindFullyActive:
		sourceFreeLamports = safemath.SaturatingSubU64(safemath.SaturatingSubU64(sourceAcct.Lamports(), sourceMergeKind.Stake.Delegation.StakeLamports), sourceMergeKind.Meta.RentExemptReserve)
	case MergeKindInactive:
		sourceFreeLamports = safemath.SaturatingSubU64(sourceMergeKind.Lamports, sourceMergeKind.Meta.RentExemptReserve)
	default:
		return InstrErrInvalidAccountData
	}

	if lamports > sourceFreeLamports {
		return InstrErrInvalidArgument
	}

	err = sourceAcct.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}
	return destAcct.CheckedAddLamports(lamports)
}

// EncodeStakeInstruction builds instruction data from a discriminator and
// an optional argument encoder.
func EncodeStakeInstruction(instrType uint32, args interface {
	MarshalWithEncoder(*bin.Encoder) error
}) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	err := encoder.WriteUint32(instrType, bin.LE)
	if err != nil {
		return nil, err
	}
	if args != nil {
		err = args.MarshalWithEncoder(encoder)
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
