package recurringpayments

import "github.com/pocnet/pocd/domain/consensus/model"

// disabled is the RecurringPayments of a network without subscriptions.
type disabled struct{}

// NewDisabled returns RecurringPayments that never apply anything.
func NewDisabled() model.RecurringPayments {
	return disabled{}
}

func (disabled) IsEnabled() bool {
	return false
}

func (disabled) ApplyUnconfirmed(model.DBWriter, uint32) (int64, error) {
	return 0, nil
}

func (disabled) ApplyConfirmed(model.DBWriter, *model.Block) error {
	return nil
}
