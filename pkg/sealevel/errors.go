package sealevel

import "errors"

// instruction errors
var (
	InstrErrGenericError             = errors.New("InstrErrGenericError")
	InstrErrInvalidArgument          = errors.New("InstrErrInvalidArgument")
	InstrErrInvalidInstructionData   = errors.New("InstrErrInvalidInstructionData")
	InstrErrInvalidAccountData       = errors.New("InstrErrInvalidAccountData")
	InstrErrAccountDataTooSmall      = errors.New("InstrErrAccountDataTooSmall")
	InstrErrInsufficientFunds        = errors.New("InstrErrInsufficientFunds")
	InstrErrIncorrectProgramId       = errors.New("InstrErrIncorrectProgramId")
	InstrErrMissingRequiredSignature = errors.New("InstrErrMissingRequiredSignature")
	InstrErrUninitializedAccount     = errors.New("InstrErrUninitializedAccount")
	InstrErrNotEnoughAccountKeys     = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrReadonlyDataModified     = errors.New("InstrErrReadonlyDataModified")
	InstrErrReadonlyLamportChange    = errors.New("InstrErrReadonlyLamportChange")
	InstrErrMissingAccount           = errors.New("InstrErrMissingAccount")
	InstrErrInvalidAccountOwner      = errors.New("InstrErrInvalidAccountOwner")
	InstrErrArithmeticOverflow       = errors.New("InstrErrArithmeticOverflow")
	InstrErrUnsupportedSysvar        = errors.New("InstrErrUnsupportedSysvar")
)

// stake errors
var (
	StakeErrNoCreditsToRedeem                                              = errors.New("StakeErrNoCreditsToRedeem")
	StakeErrLockupInForce                                                  = errors.New("StakeErrLockupInForce")
	StakeErrAlreadyDeactivated                                             = errors.New("StakeErrAlreadyDeactivated")
	StakeErrTooSoonToRedelegate                                            = errors.New("StakeErrTooSoonToRedelegate")
	StakeErrInsufficientStake                                              = errors.New("StakeErrInsufficientStake")
	StakeErrMergeTransientStake                                            = errors.New("StakeErrMergeTransientStake")
	StakeErrMergeMismatch                                                  = errors.New("StakeErrMergeMismatch")
	StakeErrCustodianMissing                                               = errors.New("StakeErrCustodianMissing")
	StakeErrCustodianSignatureMissing                                      = errors.New("StakeErrCustodianSignatureMissing")
	StakeErrInsufficientReferenceVotes                                     = errors.New("StakeErrInsufficientReferenceVotes")
	StakeErrVoteAddressMismatch                                            = errors.New("StakeErrVoteAddressMismatch")
	StakeErrMinimumDelinquentEpochsForDeactivationNotMet                   = errors.New("StakeErrMinimumDelinquentEpochsForDeactivationNotMet")
	StakeErrInsufficientDelegation                                         = errors.New("StakeErrInsufficientDelegation")
	StakeErrRedelegateTransientOrInactiveStake                             = errors.New("StakeErrRedelegateTransientOrInactiveStake")
	StakeErrRedelegateToSameVoteAccount                                    = errors.New("StakeErrRedelegateToSameVoteAccount")
	StakeErrRedelegatedStakeMustFullyActivateBeforeDeactivationIsPermitted = errors.New("StakeErrRedelegatedStakeMustFullyActivateBeforeDeactivationIsPermitted")
	StakeErrEpochRewardsActive                                             = errors.New("StakeErrEpochRewardsActive")
)

// stakeErrCodes is ordered by the custom error code of each stake error.
var stakeErrCodes = []error{
	StakeErrNoCreditsToRedeem,
	StakeErrLockupInForce,
	StakeErrAlreadyDeactivated,
	StakeErrTooSoonToRedelegate,
	StakeErrInsufficientStake,
	StakeErrMergeTransientStake,
	StakeErrMergeMismatch,
	StakeErrCustodianMissing,
	StakeErrCustodianSignatureMissing,
	StakeErrInsufficientReferenceVotes,
	StakeErrVoteAddressMismatch,
	StakeErrMinimumDelinquentEpochsForDeactivationNotMet,
	StakeErrInsufficientDelegation,
	StakeErrRedelegateTransientOrInactiveStake,
	StakeErrRedelegateToSameVoteAccount,
	StakeErrRedelegatedStakeMustFullyActivateBeforeDeactivationIsPermitted,
	StakeErrEpochRewardsActive,
}

// StakeErrorCode returns the custom program error code for a stake error.
func StakeErrorCode(err error) (uint32, bool) {
	for code, stakeErr := range stakeErrCodes {
		if errors.Is(err, stakeErr) {
			return uint32(code), true
		}
	}
	return 0, false
}

const instrErrCodeCustom = 25

var instrErrCodes = map[error]uint32{
	InstrErrGenericError:             0,
	InstrErrInvalidArgument:          1,
	InstrErrInvalidInstructionData:   2,
	InstrErrInvalidAccountData:       3,
	InstrErrAccountDataTooSmall:      4,
	InstrErrInsufficientFunds:        5,
	InstrErrIncorrectProgramId:       6,
	InstrErrMissingRequiredSignature: 7,
	InstrErrUninitializedAccount:     9,
	InstrErrReadonlyLamportChange:    14,
	InstrErrReadonlyDataModified:     15,
	InstrErrNotEnoughAccountKeys:     19,
	InstrErrMissingAccount:           32,
	InstrErrInvalidAccountOwner:      46,
	InstrErrArithmeticOverflow:       47,
	InstrErrUnsupportedSysvar:        48,
}

// InstrErrorCode returns the instruction error code for err. Stake errors
// are all reported as a custom error and should be looked up with
// StakeErrorCode.
func InstrErrorCode(err error) (uint32, bool) {
	if _, ok := StakeErrorCode(err); ok {
		return instrErrCodeCustom, true
	}
	for instrErr, code := range instrErrCodes {
		if errors.Is(err, instrErr) {
			return code, true
		}
	}
	return 0, false
}
