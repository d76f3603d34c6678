// Package domain 包含支付手续费计算的领域模型
// 费率表在进程启动时装配一次，之后不可变
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedPaymentMethod 不支持的支付方式
var ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

// PaymentMethod 支付方式
type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodPix        PaymentMethod = "pix"
	MethodBoleto     PaymentMethod = "boleto"
)

// MethodFee 单个支付方式的费率
// 手续费 = 金额 × Rate + FixedFee，boleto 等固定费为主的方式同样适用该公式
type MethodFee struct {
	// 展示名称
	Name string
	// 百分比费率，如 0.034 代表 3.4%
	Rate decimal.Decimal
	// 固定费用（货币单位）
	FixedFee decimal.Decimal
}

// FeeTable 费率表聚合根，创建后只读
type FeeTable struct {
	methods map[PaymentMethod]MethodFee
}

// NewFeeTable 创建费率表
func NewFeeTable(entries map[PaymentMethod]MethodFee) *FeeTable {
	methods := make(map[PaymentMethod]MethodFee, len(entries))
	for method, fee := range entries {
		methods[method] = fee
	}
	return &FeeTable{methods: methods}
}

// DefaultFeeTable 巴西市场的默认费率表
func DefaultFeeTable() *FeeTable {
	return NewFeeTable(map[PaymentMethod]MethodFee{
		MethodCreditCard: {Name: "Cartão de Crédito", Rate: decimal.NewFromFloat(0.034), FixedFee: decimal.NewFromFloat(0.60)},
		MethodDebitCard:  {Name: "Cartão de Débito", Rate: decimal.NewFromFloat(0.029), FixedFee: decimal.NewFromFloat(0.60)},
		MethodPix:        {Name: "PIX", Rate: decimal.NewFromFloat(0.0099), FixedFee: decimal.Zero},
		MethodBoleto:     {Name: "Boleto Bancário", Rate: decimal.NewFromFloat(0.0349), FixedFee: decimal.NewFromFloat(3.49)},
	})
}

// Supports 是否支持该支付方式
func (t *FeeTable) Supports(method PaymentMethod) bool {
	_, ok := t.methods[method]
	return ok
}

// Methods 返回费率表的副本，用于支付方式列表展示
func (t *FeeTable) Methods() map[PaymentMethod]MethodFee {
	out := make(map[PaymentMethod]MethodFee, len(t.methods))
	for method, fee := range t.methods {
		out[method] = fee
	}
	return out
}

// Breakdown 手续费明细
type Breakdown struct {
	PercentageFee decimal.Decimal `json:"percentage_fee"`
	FixedFee      decimal.Decimal `json:"fixed_fee"`
	TotalFee      decimal.Decimal `json:"total_fee"`
	AmountWithFee decimal.Decimal `json:"amount_with_fee"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

// Calculate 计算指定金额与支付方式的手续费
// 中间运算保留完整精度，仅在输出时四舍五入到 2 位小数
func (t *FeeTable) Calculate(amount decimal.Decimal, method PaymentMethod) (*Breakdown, error) {
	fee, ok := t.methods[method]
	if !ok {
		return nil, ErrUnsupportedPaymentMethod
	}

	percentageFee := amount.Mul(fee.Rate)
	totalFee := percentageFee.Add(fee.FixedFee).Round(2)

	return &Breakdown{
		PercentageFee: percentageFee.Round(2),
		FixedFee:      fee.FixedFee.Round(2),
		TotalFee:      totalFee,
		AmountWithFee: amount.Add(totalFee),
		TaxRate:       fee.Rate,
	}, nil
}

// OrderTotal 订单金额汇总
type OrderTotal struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Fees           *Breakdown      `json:"fee_breakdown"`
}

// OrderTotal 计算含手续费与运费的订单总额
func (t *FeeTable) OrderTotal(subtotal, shipping decimal.Decimal, method PaymentMethod) (*OrderTotal, error) {
	fees, err := t.Calculate(subtotal, method)
	if err != nil {
		return nil, err
	}

	return &OrderTotal{
		Subtotal:       subtotal,
		ShippingAmount: shipping,
		TaxAmount:      fees.TotalFee,
		TotalAmount:    subtotal.Add(fees.TotalFee).Add(shipping),
		Fees:           fees,
	}, nil
}
