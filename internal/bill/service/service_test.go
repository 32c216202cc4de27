package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	authrepository "github.com/smallbiznis/sekarnet/internal/auth/repository"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/bill/domain"
	"github.com/smallbiznis/sekarnet/internal/bill/repository"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/filestore"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/sekarnet/internal/subscription/repository"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	admin      = authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}
	technician = authdomain.Caller{ID: 3, Role: authdomain.RoleTechnician, IsActive: true}

	pngHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	pdfHeader  = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
)

type testEnv struct {
	svc     domain.Service
	conn    *gorm.DB
	clock   *clock.FakeClock
	genID   *snowflake.Node
	store   *filestore.LocalStore
	subRepo subscriptiondomain.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &subscriptiondomain.Subscription{}, &domain.Bill{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	subRepo := subscriptionrepository.Provide()
	svc := NewService(ServiceParam{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		SubRepo:  subRepo,
		UserRepo: authrepository.Provide(),
		Authz:    authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Store:    store,
		Portal:   config.NewStaticPortalConfigHolder(config.DefaultPortalConfig()),
	})

	return &testEnv{svc: svc, conn: conn, clock: clk, genID: node, store: store, subRepo: subRepo}
}

func (e *testEnv) customerWithSubscription(t *testing.T, username string) (authdomain.Caller, *subscriptiondomain.Subscription) {
	t.Helper()
	ctx := context.Background()
	now := e.clock.Now()

	user := &authdomain.User{
		ID:           e.genID.Generate(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username,
		Role:         authdomain.RoleCustomer,
		IsActive:     true,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, authrepository.Provide().Create(ctx, e.conn, user))

	sub := &subscriptiondomain.Subscription{
		ID:           e.genID.Generate(),
		UserID:       user.ID,
		PackageID:    e.genID.Generate(),
		Status:       subscriptiondomain.SubscriptionStatusActive,
		AutoRenew:    true,
		BillingCycle: subscriptiondomain.BillingCycleMonthly,
		BillingDay:   1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.subRepo.Insert(ctx, e.conn, sub))
	return user.Caller(), sub
}

func (e *testEnv) createBill(t *testing.T, owner authdomain.Caller, sub *subscriptiondomain.Subscription, status string) *domain.Bill {
	t.Helper()
	bill, err := e.svc.Create(context.Background(), admin, domain.CreateBillRequest{
		SubscriptionID: sub.ID.String(),
		UserID:         owner.ID.String(),
		Amount:         decimalPtr(90000),
		Tax:            decimal.NewFromInt(9900),
		TotalAmount:    decimalPtr(100000),
		BillDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		PaymentStatus:  status,
	})
	require.NoError(t, err)
	return bill
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func upload(name, contentType string, body []byte) domain.Upload {
	return domain.Upload{Filename: name, ContentType: contentType, Size: int64(len(body)), Content: bytes.NewReader(body)}
}

func TestCreateKeepsSuppliedTotals(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "budi")

	bill := env.createBill(t, owner, sub, "")
	assert.Equal(t, domain.PaymentStatusPending, bill.PaymentStatus)
	assert.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(100000)))
	assert.False(t, bill.TotalAmount.Equal(bill.Amount.Add(bill.Tax)))

	_, err := env.svc.Create(context.Background(), owner, domain.CreateBillRequest{SubscriptionID: sub.ID.String(), UserID: owner.ID.String(), DueDate: time.Now()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = env.svc.Create(context.Background(), admin, domain.CreateBillRequest{
		SubscriptionID: "424242",
		UserID:         owner.ID.String(),
		Amount:         decimalPtr(1),
		TotalAmount:    decimalPtr(1),
		DueDate:        time.Now(),
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	_, err = env.svc.Create(context.Background(), admin, domain.CreateBillRequest{
		SubscriptionID: sub.ID.String(),
		UserID:         owner.ID.String(),
		Amount:         decimalPtr(1),
		TotalAmount:    decimalPtr(1),
		DueDate:        time.Now(),
		PaymentStatus:  "refunded",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)
}

func TestCreateRequiresAmounts(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "putri")
	ctx := context.Background()

	base := domain.CreateBillRequest{
		SubscriptionID: sub.ID.String(),
		UserID:         owner.ID.String(),
		BillDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	_, err := env.svc.Create(ctx, admin, base)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	onlyAmount := base
	onlyAmount.Amount = decimalPtr(50000)
	_, err = env.svc.Create(ctx, admin, onlyAmount)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	zero := base
	zero.Amount = decimalPtr(0)
	zero.TotalAmount = decimalPtr(0)
	bill, err := env.svc.Create(ctx, admin, zero)
	require.NoError(t, err)
	assert.True(t, bill.TotalAmount.IsZero())
}

func TestVerifyPaymentOnlyFromPending(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "siti")
	ctx := context.Background()

	bill := env.createBill(t, owner, sub, "pending")

	_, err := env.svc.VerifyPayment(ctx, owner, bill.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	paid, err := env.svc.VerifyPayment(ctx, admin, bill.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.PaymentStatus)

	_, err = env.svc.VerifyPayment(ctx, admin, bill.ID.String())
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	stored, err := env.svc.Get(ctx, admin, bill.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)

	for _, status := range []string{"cancelled", "overdue", "pending_verification"} {
		other := env.createBill(t, owner, sub, status)
		_, err := env.svc.VerifyPayment(ctx, admin, other.ID.String())
		assert.ErrorIs(t, err, domain.ErrIllegalTransition, status)

		unchanged, err := env.svc.Get(ctx, admin, other.ID.String())
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatus(status), unchanged.PaymentStatus)
	}

	_, err = env.svc.VerifyPayment(ctx, admin, "987654")
	assert.ErrorIs(t, err, domain.ErrBillNotFound)
}

func TestGetIsSelfOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "agus")
	other, _ := env.customerWithSubscription(t, "rina")
	bill := env.createBill(t, owner, sub, "")
	ctx := context.Background()

	_, err := env.svc.Get(ctx, other, bill.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Get(ctx, technician, bill.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	got, err := env.svc.Get(ctx, owner, bill.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bill.ID, got.ID)

	_, err = env.svc.Get(ctx, admin, bill.ID.String())
	require.NoError(t, err)

	inactive := owner
	inactive.IsActive = false
	_, err = env.svc.Get(ctx, inactive, bill.ID.String())
	assert.ErrorIs(t, err, authorization.ErrInactiveAccount)
}

func TestPayOverwritesPaymentFields(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "dewi")
	bill := env.createBill(t, owner, sub, "overdue")
	ctx := context.Background()

	paidAt := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	updated, err := env.svc.Pay(ctx, owner, bill.ID.String(), domain.PayBillRequest{
		PaymentStatus:    "paid",
		PaymentMethod:    "bank_transfer",
		PaymentDate:      paidAt,
		PaymentReference: "TRX-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodBankTransfer, *updated.PaymentMethod)
	assert.True(t, paidAt.Equal(*updated.PaymentDate))
	assert.Equal(t, "TRX-1", *updated.PaymentReference)
	assert.Nil(t, updated.PaymentProof)

	again, err := env.svc.Pay(ctx, admin, bill.ID.String(), domain.PayBillRequest{
		PaymentStatus: "pending",
		PaymentMethod: "cash",
		PaymentDate:   paidAt.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, again.PaymentStatus)
	assert.Equal(t, "TRX-1", *again.PaymentReference)

	_, err = env.svc.Pay(ctx, owner, bill.ID.String(), domain.PayBillRequest{PaymentStatus: "paid", PaymentMethod: "barter", PaymentDate: paidAt})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	other, _ := env.customerWithSubscription(t, "eko")
	_, err = env.svc.Pay(ctx, other, bill.ID.String(), domain.PayBillRequest{PaymentStatus: "paid", PaymentMethod: "cash", PaymentDate: paidAt})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUpdatePartialPatch(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "fajar")
	bill := env.createBill(t, owner, sub, "")
	ctx := context.Background()

	amount := decimal.NewFromInt(120000)
	proof := "payment-proofs/manual.png"
	updated, err := env.svc.Update(ctx, admin, bill.ID.String(), domain.UpdateBillRequest{
		Amount:       &amount,
		PaymentProof: &proof,
	})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, proof, *updated.PaymentProof)

	negative := decimal.NewFromInt(-1)
	_, err = env.svc.Update(ctx, admin, bill.ID.String(), domain.UpdateBillRequest{Tax: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = env.svc.Update(ctx, owner, bill.ID.String(), domain.UpdateBillRequest{Amount: &amount})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestUploadProofResetsToPending(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "gita")
	bill := env.createBill(t, owner, sub, "overdue")
	ctx := context.Background()

	updated, err := env.svc.UploadProof(ctx, owner, bill.ID.String(), upload("receipt.JPG", "image/jpeg", jpegHeader))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, updated.PaymentStatus)
	require.NotNil(t, updated.PaymentProof)
	assert.Equal(t, fmt.Sprintf("payment-proofs/payment_proof_%d_%d_20240310080000.jpg", bill.ID.Int64(), owner.ID.Int64()), *updated.PaymentProof)
	assert.Nil(t, updated.PaymentDate)

	rc, err := env.store.Open(ctx, *updated.PaymentProof)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, jpegHeader, body)
}

func TestUploadProofRemovesBlobWhenUpdateFails(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "gilang")
	bill := env.createBill(t, owner, sub, "overdue")
	ctx := context.Background()

	require.NoError(t, env.conn.Callback().Update().Before("gorm:update").Register("test:fail_bill_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "bills" {
			_ = tx.AddError(errors.New("write rejected"))
		}
	}))

	_, err := env.svc.UploadProof(ctx, owner, bill.ID.String(), upload("receipt.jpg", "image/jpeg", jpegHeader))
	require.Error(t, err)
	key := fmt.Sprintf("payment-proofs/payment_proof_%d_%d_20240310080000.jpg", bill.ID.Int64(), owner.ID.Int64())
	_, err = env.store.Open(ctx, key)
	assert.ErrorIs(t, err, filestore.ErrObjectNotFound)

	_, err = env.svc.SubmitQRISProof(ctx, owner, bill.ID.String(), upload("proof.png", "image/png", pngHeader))
	require.Error(t, err)
	key = fmt.Sprintf("payment-proofs/payment-proof-%d-%d-20240310080000.png", bill.ID.Int64(), owner.ID.Int64())
	_, err = env.store.Open(ctx, key)
	assert.ErrorIs(t, err, filestore.ErrObjectNotFound)
}

func TestSubmitQRISProof(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "hana")
	bill := env.createBill(t, owner, sub, "")
	ctx := context.Background()

	updated, err := env.svc.SubmitQRISProof(ctx, owner, bill.ID.String(), upload("proof.png", "image/png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPendingVerification, updated.PaymentStatus)
	require.NotNil(t, updated.PaymentDate)
	assert.True(t, env.clock.Now().Equal(*updated.PaymentDate))
	assert.True(t, strings.HasSuffix(*updated.PaymentProof, ".png"))

	proof, err := env.svc.OpenProof(ctx, admin, bill.ID.String())
	require.NoError(t, err)
	defer proof.Content.Close()
	body, err := io.ReadAll(proof.Content)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)

	pdfBill := env.createBill(t, owner, sub, "")
	_, err = env.svc.SubmitQRISProof(ctx, admin, pdfBill.ID.String(), upload("proof.pdf", "application/pdf", pdfHeader))
	require.NoError(t, err)
}

func TestSubmitQRISProofRejectsInvalidFiles(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "indra")
	bill := env.createBill(t, owner, sub, "")
	ctx := context.Background()

	oversized := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2<<20)...)

	cases := []struct {
		name   string
		upload domain.Upload
		err    error
	}{
		{"declared type not allowed", upload("notes.txt", "text/plain", []byte("hello")), domain.ErrUnsupportedFileType},
		{"sniffed type not allowed", upload("cat.png", "image/png", gifHeader), domain.ErrUnsupportedFileType},
		{"unknown content", upload("x.png", "", []byte("plain text body")), domain.ErrUnsupportedFileType},
		{"declared size too large", domain.Upload{ContentType: "image/png", Size: 3 << 20, Content: bytes.NewReader(pngHeader)}, domain.ErrFileTooLarge},
		{"stream too large", domain.Upload{ContentType: "image/png", Content: bytes.NewReader(oversized)}, domain.ErrFileTooLarge},
		{"empty", upload("x.png", "image/png", nil), domain.ErrEmptyFile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.SubmitQRISProof(ctx, owner, bill.ID.String(), tc.upload)
			assert.ErrorIs(t, err, tc.err)
			assert.ErrorIs(t, err, domain.ErrInvalidFile)
		})
	}

	unchanged, err := env.svc.Get(ctx, owner, bill.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, unchanged.PaymentStatus)
	assert.Nil(t, unchanged.PaymentProof)

	other, _ := env.customerWithSubscription(t, "joko")
	_, err = env.svc.SubmitQRISProof(ctx, other, bill.ID.String(), upload("proof.png", "image/png", pngHeader))
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestQRISQuote(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "kiki")
	bill := env.createBill(t, owner, sub, "")
	ctx := context.Background()

	quote, err := env.svc.QRISQuote(ctx, owner, bill.ID.String())
	require.NoError(t, err)

	number := fmt.Sprintf("BILL-%06d", bill.ID.Int64())
	assert.Equal(t, number, quote.QRISData.BillNumber)
	assert.Equal(t, fmt.Sprintf("REF-%d", bill.ID.Int64()), quote.QRISData.Reference1)
	assert.Equal(t, "Period March 2024", quote.QRISData.Reference2)
	assert.Equal(t, "SEKAR NET", quote.QRISData.MerchantName)
	assert.Equal(t, "2024-03-11T08:00:00Z", quote.QRISData.ValidUntil)
	assert.True(t, quote.QRISData.Amount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "Rp 100,000", quote.PaymentDetails.Amount)
	assert.Equal(t, "15/03/2024", quote.PaymentDetails.DueDate)
	assert.Equal(t, number, quote.PaymentDetails.BillNumber)
	assert.Equal(t, fmt.Sprintf("/api/v1/bills/%d/qris/download", bill.ID.Int64()), quote.DownloadURL)
	require.Len(t, quote.Instructions, 8)
	assert.Equal(t, "2. Pilih fitur Scan QRIS", quote.Instructions[1])
	assert.Equal(t, "8. Upload bukti pembayaran di halaman billing", quote.Instructions[7])

	stored, err := env.svc.Get(ctx, owner, bill.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bill.UpdatedAt.Unix(), stored.UpdatedAt.Unix())

	other, _ := env.customerWithSubscription(t, "lina")
	_, err = env.svc.QRISQuote(ctx, other, bill.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestOpenProofWithoutProof(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "mira")
	bill := env.createBill(t, owner, sub, "")

	_, err := env.svc.OpenProof(context.Background(), owner, bill.ID.String())
	assert.ErrorIs(t, err, domain.ErrProofNotFound)
}

func TestListBills(t *testing.T) {
	env := newTestEnv(t)
	owner, sub := env.customerWithSubscription(t, "nina")
	other, otherSub := env.customerWithSubscription(t, "oscar")
	ctx := context.Background()

	env.createBill(t, owner, sub, "pending")
	env.createBill(t, owner, sub, "paid")
	env.createBill(t, other, otherSub, "pending")

	mine, err := env.svc.ListMine(ctx, owner, domain.ListBillRequest{})
	require.NoError(t, err)
	assert.Len(t, mine.Bills, 2)

	paid, err := env.svc.ListMine(ctx, owner, domain.ListBillRequest{PaymentStatus: "paid"})
	require.NoError(t, err)
	assert.Len(t, paid.Bills, 1)

	_, err = env.svc.ListMine(ctx, owner, domain.ListBillRequest{PaymentStatus: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)

	_, err = env.svc.ListAll(ctx, owner, domain.ListBillRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	all, err := env.svc.ListAll(ctx, admin, domain.ListBillRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Bills, 3)

	filtered, err := env.svc.ListAll(ctx, admin, domain.ListBillRequest{UserID: other.ID.String()})
	require.NoError(t, err)
	assert.Len(t, filtered.Bills, 1)
}
