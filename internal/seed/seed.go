package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
	"gorm.io/gorm"
)

const defaultOwnerName = "Effekt Foundation"

// EnsureBaseline seeds the rows every installation needs before it can take
// donations: the default data owner and the payment method registry. Both are
// idempotent find-or-create lookups.
func EnsureBaseline(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultOwner(ctx, tx, node); err != nil {
			return err
		}
		return ensurePaymentMethods(ctx, tx)
	})
}

func ensureDefaultOwner(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var owner distributiondomain.DataOwner
	err := tx.WithContext(ctx).Where("is_default = ?", true).First(&owner).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	owner = distributiondomain.DataOwner{
		ID:        node.Generate(),
		Name:      defaultOwnerName,
		IsDefault: true,
	}
	return tx.WithContext(ctx).Create(&owner).Error
}

func ensurePaymentMethods(ctx context.Context, tx *gorm.DB) error {
	// Method IDs are an external contract; they are fixed, never generated.
	methods := []donationdomain.PaymentMethod{
		{ID: paymentdomain.MethodBank, Name: "Bank transfer", Abbrev: "bank"},
		{ID: paymentdomain.MethodPayPal, Name: "PayPal", Abbrev: "paypal"},
		{ID: paymentdomain.MethodVipps, Name: "Vipps", Abbrev: "vipps"},
	}
	for _, method := range methods {
		var existing donationdomain.PaymentMethod
		err := tx.WithContext(ctx).Where("id = ?", method.ID).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.WithContext(ctx).Create(&method).Error; err != nil {
			return err
		}
	}
	return nil
}
