package types

// PaymentType selects which provider operation fulfills an order.
type PaymentType string

const (
	PaymentTypeBillPayment PaymentType = "BILL_PAYMENT"
	PaymentTypeGiftCard    PaymentType = "GIFT_CARD"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeBillPayment || t == PaymentTypeGiftCard
}

// OrderStatus is the lifecycle state of a payment order.
type OrderStatus string

const (
	OrderStatusSubmitted  OrderStatus = "SUBMITTED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected for the order.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// AttemptStatus is the state of a single provider call. Transitions only move
// forward: CREATED -> SUBMITTED -> FAILED, or CREATED -> FAILED.
type AttemptStatus string

const (
	AttemptStatusCreated   AttemptStatus = "CREATED"
	AttemptStatusSubmitted AttemptStatus = "SUBMITTED"
	AttemptStatusFailed    AttemptStatus = "FAILED"
)

type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "ACTIVE"
	ScheduleStatusPaused    ScheduleStatus = "PAUSED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// ScheduleFrequency is a caller-facing recurrence choice, expanded into a
// cron expression and a concrete next run time by the schedule service.
type ScheduleFrequency string

const (
	ScheduleFrequencyWeekly  ScheduleFrequency = "weekly"
	ScheduleFrequencyMonthly ScheduleFrequency = "monthly"
	ScheduleFrequencyYearly  ScheduleFrequency = "yearly"
)

func (f ScheduleFrequency) Valid() bool {
	switch f {
	case ScheduleFrequencyWeekly, ScheduleFrequencyMonthly, ScheduleFrequencyYearly:
		return true
	}
	return false
}
