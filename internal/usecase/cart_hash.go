package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/phenrril/storefront/internal/domain"
)

// GenerateCartHash signs the fields that matter for pricing, in cart order.
// Prices are signed at full precision.
func (uc *CartUC) GenerateCartHash(items []domain.CartItem) string {
	mac := hmac.New(sha256.New, uc.Secret)
	mac.Write(canonicalCart(items))
	return hex.EncodeToString(mac.Sum(nil))
}

func (uc *CartUC) VerifyCartIntegrity(items []domain.CartItem, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, uc.Secret)
	mac.Write(canonicalCart(items))
	return hmac.Equal(mac.Sum(nil), want)
}

func canonicalCart(items []domain.CartItem) []byte {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		vid := ""
		if it.VariantID != nil {
			vid = it.VariantID.String()
		}
		lines = append(lines, strings.Join([]string{
			it.ProductID.String(), vid, strconv.Itoa(it.Quantity), it.UnitAmount.String(),
		}, "|"))
	}
	return []byte(strings.Join(lines, "\n"))
}
