package usecase

// OrderStage is where CreateOrderFromCart is in its run.
type OrderStage int

const (
	StageValidating OrderStage = iota
	StageInventoryChecking
	StagePersisting
	StageInventoryDecrementing
	StagePaymentInitiating
	StageCompleted
	StageFailed
)

var stageNames = [...]string{
	StageValidating:            "validating",
	StageInventoryChecking:     "inventory_checking",
	StagePersisting:            "persisting",
	StageInventoryDecrementing: "inventory_decrementing",
	StagePaymentInitiating:     "payment_initiating",
	StageCompleted:             "completed",
	StageFailed:                "failed",
}

func (s OrderStage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
