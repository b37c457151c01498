package model

import "time"

type OrderStatus string

// 订单状态机：pending → initiated → paid / failed，paid 和 failed 为终态。
// 捕获阶段出现任何异常都显式置为 failed，不允许停留在 initiated。
const (
	OrderPending   OrderStatus = "pending"
	OrderInitiated OrderStatus = "initiated"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
)

// swagger:model Order
type Order struct {
	BaseModel
	UserID        uint        `gorm:"index;not null" json:"userId"`
	CourseID      uint        `gorm:"index;not null" json:"courseId"`
	CourseTitle   string      `gorm:"size:200" json:"courseTitle"`
	Amount        int64       `gorm:"not null" json:"amount"` // 货币最小单位
	Currency      string      `gorm:"size:10;default:'INR'" json:"currency"`
	PaymentMethod string      `gorm:"size:50" json:"paymentMethod"`
	Status        OrderStatus `gorm:"size:20;default:'pending';index" json:"status"`

	// 网关侧标识。下单成功前为空串，不能加唯一索引
	GatewayOrderID   string `gorm:"size:100;index" json:"gatewayOrderId"`
	GatewayPaymentID string `gorm:"size:100" json:"gatewayPaymentId"`

	FailureReason string     `gorm:"size:255" json:"failureReason,omitempty"`
	PaidAt        *time.Time `json:"paidAt"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal 终态订单不再接受任何状态迁移
func (o *Order) IsTerminal() bool {
	return o.Status == OrderPaid || o.Status == OrderFailed
}
