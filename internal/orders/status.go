package orders

type Status string

const (
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusCashOnDelivery  Status = "CASH_ON_DELIVERY"
	StatusPaid            Status = "PAID"
	StatusProcessing      Status = "PROCESSING"
	StatusShipped         Status = "SHIPPED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment: {StatusPaid: true, StatusCancelled: true},
	StatusCashOnDelivery:  {StatusProcessing: true, StatusCancelled: true},
	StatusPaid:            {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing:      {StatusShipped: true, StatusCancelled: true},
	StatusShipped:         {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:       {StatusCancelled: true},
	StatusCancelled:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CountedStatuses are the statuses of "real" orders, used for milestone
// ordinals and reporting. Pending and cancelled orders are excluded.
var CountedStatuses = []Status{
	StatusCashOnDelivery,
	StatusPaid,
	StatusProcessing,
	StatusShipped,
	StatusCompleted,
}

// Advance moves o to next, pushing the current status onto the history.
// It does not check CanTransition; callers decide which edges they allow.
func (o *Order) Advance(next Status) {
	o.StatusHistory = append(o.StatusHistory, o.Status)
	o.Status = next
}
