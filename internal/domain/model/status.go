package model

import "strings"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 許可する遷移。ここに無い遷移はすべて不正
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {OrderStatusShipped: true, OrderStatusCancelled: true},
	OrderStatusShipped:   {OrderStatusDelivered: true},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// 終端（これ以上変わらない）
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// from→toが許可されているか
func CanTransition(from, to OrderStatus) bool {
	return orderTransitions[from][to]
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", false
	}
	return st, true
}

type PaymentMethod string

const (
	PaymentMethodOnlineWallet PaymentMethod = "online-wallet"
	PaymentMethodInPerson     PaymentMethod = "in-person"
	PaymentMethodChatAssisted PaymentMethod = "chat-assisted"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case PaymentMethodOnlineWallet, PaymentMethodInPerson, PaymentMethodChatAssisted:
		return m, true
	}
	return "", false
}

// オンライン決済（プロバイダ呼び出し）が必要か
func (m PaymentMethod) RequiresOnlinePayment() bool {
	return m == PaymentMethodOnlineWallet
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailure PaymentStatus = "failure"
)

// success/failureは確定。確定後は戻さない
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailure
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.IsFinal()
}

// プロバイダのステータスコードを3値にまとめる。知らないコードはpending扱い
func PaymentStatusFromProvider(code string) (PaymentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "SUCCESSFUL", "SUCCESS", "SUCCEEDED", "COMPLETED", "PAID":
		return PaymentStatusSuccess, true
	case "FAILED", "FAILURE", "REJECTED", "EXPIRED", "CANCELLED", "CANCELED", "TIMEOUT":
		return PaymentStatusFailure, true
	case "PENDING", "CREATED", "ONGOING", "PROCESSING":
		return PaymentStatusPending, true
	}
	return PaymentStatusPending, false
}
