package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 1回の注文で受け付ける明細数の上限
const maxCheckoutLines = 100

type OrderUsecase struct {
	tx     repo.TransactionManager
	payer  *PaymentInitiator
	events EventPublisher
	cache  OrderStatusCache
	log    *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, payer *PaymentInitiator, events EventPublisher, cache OrderStatusCache, log *zap.Logger) *OrderUsecase {
	if events == nil {
		events = NopPublisher()
	}
	if cache == nil {
		cache = NopStatusCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderUsecase{tx: tx, payer: payer, events: events, cache: cache, log: log}
}

type CheckoutInput struct {
	PaymentMethod string
	Items         []CartLine
	Phone         *string
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderOutput struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Status        model.OrderStatus   `json:"status"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []OrderItemOutput   `json:"items"`
	Payments      []PaymentOutput     `json:"payments,omitempty"`
}

// POST /orders のレスポンス。payment/payment_errorはオンライン決済のときだけ
type CheckoutOutput struct {
	Order        OrderOutput         `json:"order"`
	Payment      *PaymentOutput      `json:"payment,omitempty"`
	PaymentError *PaymentErrorOutput `json:"payment_error,omitempty"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 注文確定。
// 入力チェック → Tx{価格/在庫の検証 → 注文作成 → 明細作成 → 在庫減算} → イベント → 決済開始
func (u *OrderUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}
	if len(in.Items) == 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "items required")
	}
	if len(in.Items) > maxCheckoutLines {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "too many items")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity < 1 {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
		}
	}

	//オンライン決済は電話番号必須（書き込み前に弾く）
	var phone string
	if method.RequiresOnlinePayment() {
		if in.Phone == nil {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "phone required for online-wallet payment")
		}
		p, ok := model.NormalizePhone(*in.Phone)
		if !ok {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid phone")
		}
		phone = p
	}

	lines := MergeCartLines(in.Items)

	var created model.Order
	var createdItems []model.OrderItem

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		verified, err := VerifyCart(ctx, r.Products(), lines)
		if err != nil {
			return err
		}

		now := time.Now()
		order := model.Order{
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentMethod: method,
			TotalPrice:    verified.Total,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if phone != "" {
			order.CustomerPhone = &phone
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return errTxAborted()
		}
		order.ID = orderID

		//スナップショット（注文時点の名前と価格）
		items := make([]model.OrderItem, 0, len(verified.Lines))
		for _, l := range verified.Lines {
			items = append(items, model.OrderItem{
				ProductID:           l.Product.ID,
				ProductNameSnapshot: l.Product.Name,
				UnitPriceSnapshot:   l.UnitPrice,
				Quantity:            l.Quantity,
				CreatedAt:           now,
			})
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return errTxAborted()
		}

		//在庫減算。検証後に他の注文が先に減らしていたらここで負ける
		for _, l := range verified.Lines {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, l.Product.ID, l.Quantity)
			if err != nil {
				return errTxAborted()
			}
			if !ok {
				return errInsufficientStock()
			}
		}

		created = order
		createdItems = items
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return CheckoutOutput{}, err
		}
		//commit失敗など
		u.log.Error("checkout transaction failed", zap.Int64("user_id", userID), zap.Error(err))
		return CheckoutOutput{}, errTxAborted()
	}

	u.log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(method)),
		zap.String("total", created.TotalPrice.StringFixed(2)),
	)
	u.afterStatusChange(ctx, created, EventOrderCreated, "")

	out := CheckoutOutput{Order: toOrderOutput(created, createdItems, nil)}
	if !method.RequiresOnlinePayment() {
		return out, nil
	}

	//注文はコミット済み。ここから先の失敗で注文は消さない
	payment, perr, err := u.initiatePayment(ctx, created, phone)
	if err != nil {
		return CheckoutOutput{}, err
	}
	out.Payment = payment
	out.PaymentError = perr
	if payment != nil {
		out.Order.Payments = []PaymentOutput{*payment}
		u.refreshStatusCache(ctx, created, payment.Status)
	}
	return out, nil
}

type RetryPaymentInput struct {
	Phone *string
}

// 既存のPENDING注文に対して決済をやり直す
func (u *OrderUsecase) RetryPayment(ctx context.Context, userID int64, orderID int64, in RetryPaymentInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var phone string
	if in.Phone != nil {
		p, ok := model.NormalizePhone(*in.Phone)
		if !ok {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid phone")
		}
		phone = p
	}

	var order model.Order
	var items []model.OrderItem
	var payments []model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if !o.PaymentMethod.RequiresOnlinePayment() {
			return NewHTTPError(http.StatusConflict, "order does not use online-wallet payment")
		}
		if o.Status != model.OrderStatusPending {
			return NewHTTPError(http.StatusConflict, "order is not pending")
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		payments, err = r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		for _, p := range payments {
			switch p.Status {
			case model.PaymentStatusSuccess:
				return NewHTTPError(http.StatusConflict, "order already paid")
			case model.PaymentStatusPending:
				// 前の試行の結果待ち。並行する試行を作らない
				return NewHTTPError(http.StatusConflict, "payment already in progress")
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	if phone == "" && order.CustomerPhone != nil {
		phone = *order.CustomerPhone
	}
	if phone == "" {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "phone required for online-wallet payment")
	}

	payment, perr, err := u.initiatePayment(ctx, order, phone)
	if err != nil {
		return CheckoutOutput{}, err
	}
	if payment != nil {
		paymentsOut := append(toPaymentOutputs(payments), *payment)
		u.refreshStatusCache(ctx, order, payment.Status)
		out := toOrderOutput(order, items, nil)
		out.Payments = paymentsOut
		return CheckoutOutput{Order: out, Payment: payment}, nil
	}
	return CheckoutOutput{Order: toOrderOutput(order, items, payments), PaymentError: perr}, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return errDB()
		}

		out.Total = total
		out.Items = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			out.Items = append(out.Items, toOrderOutput(o, items, nil))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		payments, err := r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}

		out = toOrderOutput(o, items, payments)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文ステータス。キャッシュにあればDBを見ない
func (u *OrderUsecase) GetOrderStatus(ctx context.Context, userID int64, orderID int64) (OrderStatusSnapshot, error) {
	if userID <= 0 {
		return OrderStatusSnapshot{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderStatusSnapshot{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	snap, hit, err := u.cache.Get(ctx, orderID)
	if err != nil {
		u.log.Warn("order status cache get failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if err == nil && hit {
		if snap.UserID != userID {
			return OrderStatusSnapshot{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return snap, nil
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		payments, err := r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB()
		}
		snap = OrderStatusSnapshot{
			OrderID:       o.ID,
			UserID:        o.UserID,
			Status:        o.Status,
			PaymentStatus: latestPaymentStatus(payments),
		}
		return nil
	})
	if err != nil {
		return OrderStatusSnapshot{}, err
	}

	if err := u.cache.Set(ctx, snap); err != nil {
		u.log.Warn("order status cache set failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return snap, nil
}

// コミット後の通知（キャッシュ更新とイベント発行）。失敗してもログだけ
func (u *OrderUsecase) afterStatusChange(ctx context.Context, o model.Order, eventType string, ps model.PaymentStatus) {
	u.refreshStatusCache(ctx, o, ps)
	publishOrderEvent(ctx, u.events, u.log, eventType, o)
}

func (u *OrderUsecase) refreshStatusCache(ctx context.Context, o model.Order, ps model.PaymentStatus) {
	if err := u.cache.Set(ctx, OrderStatusSnapshot{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: ps,
	}); err != nil {
		u.log.Warn("order status cache set failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func publishOrderEvent(ctx context.Context, events EventPublisher, log *zap.Logger, eventType string, o model.Order) {
	if err := events.Publish(ctx, OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		log.Warn("order event publish failed",
			zap.String("type", eventType),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// 最後に作られた決済のステータス
func latestPaymentStatus(payments []model.Payment) model.PaymentStatus {
	if len(payments) == 0 {
		return ""
	}
	latest := payments[0]
	for _, p := range payments[1:] {
		if p.ID > latest.ID {
			latest = p
		}
	}
	return latest.Status
}

func toOrderOutput(o model.Order, items []model.OrderItem, payments []model.Payment) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	return OrderOutput{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		TotalPrice:    o.TotalPrice,
		CreatedAt:     o.CreatedAt,
		Items:         outItems,
		Payments:      toPaymentOutputs(payments),
	}
}

func toPaymentOutputs(ps []model.Payment) []PaymentOutput {
	if len(ps) == 0 {
		return nil
	}
	out := make([]PaymentOutput, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPaymentOutput(p))
	}
	return out
}

func (u *OrderUsecase) initiatePayment(ctx context.Context, o model.Order, phone string) (*PaymentOutput, *PaymentErrorOutput, error) {
	if u.payer == nil {
		return nil, &PaymentErrorOutput{
			Kind:    KindPaymentProviderUnavailable,
			Message: "online payment is not configured",
		}, nil
	}
	return u.payer.Initiate(ctx, o, phone)
}
