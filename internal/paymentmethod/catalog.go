// Package paymentmethod defines the closed set of tenders the hub accepts
// and the static metadata each one carries. The catalog is compile-time
// data; nothing here talks to storage or gateways.
package paymentmethod

// Method is a tender tag.
type Method string

// Category groups tenders for display and routing decisions.
type Category string

const (
	CategoryCash         Category = "cash"
	CategoryCard         Category = "card"
	CategoryWallet       Category = "wallet"
	CategoryBankTransfer Category = "bank_transfer"
	CategoryCrypto       Category = "crypto"
	CategoryPoints       Category = "points"
	CategoryVoucher      Category = "voucher"
	CategoryBNPL         Category = "bnpl"
	CategoryCustom       Category = "custom"
)

// Cash
const (
	Cash Method = "cash"
)

// Credit cards
const (
	CreditCardVisa       Method = "credit_card_visa"
	CreditCardMastercard Method = "credit_card_mastercard"
	CreditCardAmex       Method = "credit_card_amex"
	CreditCardJCB        Method = "credit_card_jcb"
	CreditCardUnionPay   Method = "credit_card_unionpay"
)

// Digital wallets, Thailand
const (
	TrueWallet    Method = "true_wallet"
	PromptPay     Method = "promptpay"
	LinePay       Method = "line_pay"
	RabbitLinePay Method = "rabbit_line_pay"
	ShopeePay     Method = "shopee_pay"
	GrabPay       Method = "grab_pay"
)

// Digital wallets, international
const (
	ApplePay   Method = "apple_pay"
	GooglePay  Method = "google_pay"
	SamsungPay Method = "samsung_pay"
	Alipay     Method = "alipay"
	WeChatPay  Method = "wechat_pay"
	PayPal     Method = "paypal"
	AmazonPay  Method = "amazon_pay"
	Venmo      Method = "venmo"
	Zelle      Method = "zelle"
	CashApp    Method = "cash_app"
)

// Bank transfers
const (
	BankTransfer Method = "bank_transfer"
	WireTransfer Method = "wire_transfer"
)

// Cryptocurrency
const (
	CryptoBTC     Method = "crypto_btc"
	CryptoETH     Method = "crypto_eth"
	CryptoXRP     Method = "crypto_xrp"
	CryptoBitkub  Method = "crypto_bitkub"
	CryptoBinance Method = "crypto_binance"
	CryptoSolana  Method = "crypto_solana"
	CryptoUSDT    Method = "crypto_usdt"
	CryptoUSDC    Method = "crypto_usdc"
	CryptoCustom  Method = "crypto_custom"
)

// Points and rewards
const (
	PointsThe1       Method = "points_the1"
	PointsBlueCard   Method = "points_bluecard"
	PointsCreditCard Method = "points_credit_card"
	PointsAirline    Method = "points_airline"
	PointsHotel      Method = "points_hotel"
	PointsCustom     Method = "points_custom"
)

// Vouchers and coupons
const (
	Voucher  Method = "voucher"
	GiftCard Method = "gift_card"
	Coupon   Method = "coupon"
)

// Buy now, pay later
const (
	BNPLAtome        Method = "bnpl_atome"
	BNPLSplit        Method = "bnpl_split"
	BNPLGrabPayLater Method = "bnpl_grab_paylater"
	BNPLAffirm       Method = "bnpl_affirm"
	BNPLKlarna       Method = "bnpl_klarna"
	BNPLAfterpay     Method = "bnpl_afterpay"
)

// Custom
const (
	Custom Method = "custom"
)

// Info is the static metadata for one tender.
type Info struct {
	Code            Method   `json:"code"`
	Name            string   `json:"name"`    // Thai display name
	NameEN          string   `json:"name_en"` // English display name
	Category        Category `json:"type"`
	RequiresGateway bool     `json:"requires_gateway"`
	Region          string   `json:"region"`
}

// ordered keeps the catalog's display order stable across calls.
var ordered = []Method{
	Cash,
	CreditCardVisa, CreditCardMastercard, CreditCardAmex, CreditCardJCB, CreditCardUnionPay,
	TrueWallet, PromptPay, LinePay, RabbitLinePay, ShopeePay, GrabPay,
	ApplePay, GooglePay, SamsungPay, Alipay, WeChatPay, PayPal, AmazonPay, Venmo, Zelle, CashApp,
	BankTransfer, WireTransfer,
	CryptoBTC, CryptoETH, CryptoXRP, CryptoBitkub, CryptoBinance, CryptoSolana, CryptoUSDT, CryptoUSDC, CryptoCustom,
	PointsThe1, PointsBlueCard, PointsCreditCard, PointsAirline, PointsHotel, PointsCustom,
	Voucher, GiftCard, Coupon,
	BNPLAtome, BNPLSplit, BNPLGrabPayLater, BNPLAffirm, BNPLKlarna, BNPLAfterpay,
	Custom,
}

var catalog = map[Method]Info{
	Cash: {Cash, "เงินสด", "Cash", CategoryCash, false, "global"},

	CreditCardVisa:       {CreditCardVisa, "บัตรเครดิต Visa", "Visa Credit Card", CategoryCard, true, "global"},
	CreditCardMastercard: {CreditCardMastercard, "บัตรเครดิต Mastercard", "Mastercard Credit Card", CategoryCard, true, "global"},
	CreditCardAmex:       {CreditCardAmex, "บัตรเครดิต American Express", "American Express", CategoryCard, true, "global"},
	CreditCardJCB:        {CreditCardJCB, "บัตรเครดิต JCB", "JCB Credit Card", CategoryCard, true, "asia"},
	CreditCardUnionPay:   {CreditCardUnionPay, "บัตรเครดิต UnionPay", "UnionPay Credit Card", CategoryCard, true, "asia"},

	TrueWallet:    {TrueWallet, "True Wallet", "True Wallet", CategoryWallet, true, "thailand"},
	PromptPay:     {PromptPay, "PromptPay", "PromptPay", CategoryWallet, true, "thailand"},
	LinePay:       {LinePay, "LINE Pay", "LINE Pay", CategoryWallet, true, "asia"},
	RabbitLinePay: {RabbitLinePay, "Rabbit LINE Pay", "Rabbit LINE Pay", CategoryWallet, true, "thailand"},
	ShopeePay:     {ShopeePay, "ShopeePay", "ShopeePay", CategoryWallet, true, "asia"},
	GrabPay:       {GrabPay, "GrabPay", "GrabPay", CategoryWallet, true, "asia"},

	ApplePay:   {ApplePay, "Apple Pay", "Apple Pay", CategoryWallet, true, "global"},
	GooglePay:  {GooglePay, "Google Pay", "Google Pay", CategoryWallet, true, "global"},
	SamsungPay: {SamsungPay, "Samsung Pay", "Samsung Pay", CategoryWallet, true, "global"},
	Alipay:     {Alipay, "Alipay", "Alipay", CategoryWallet, true, "china"},
	WeChatPay:  {WeChatPay, "WeChat Pay", "WeChat Pay", CategoryWallet, true, "china"},
	PayPal:     {PayPal, "PayPal", "PayPal", CategoryWallet, true, "global"},
	AmazonPay:  {AmazonPay, "Amazon Pay", "Amazon Pay", CategoryWallet, true, "global"},
	Venmo:      {Venmo, "Venmo", "Venmo", CategoryWallet, true, "usa"},
	Zelle:      {Zelle, "Zelle", "Zelle", CategoryWallet, true, "usa"},
	CashApp:    {CashApp, "Cash App", "Cash App", CategoryWallet, true, "usa"},

	BankTransfer: {BankTransfer, "โอนเงินผ่านธนาคาร", "Bank Transfer", CategoryBankTransfer, true, "global"},
	WireTransfer: {WireTransfer, "Wire Transfer", "Wire Transfer", CategoryBankTransfer, true, "global"},

	CryptoBTC:     {CryptoBTC, "Bitcoin (BTC)", "Bitcoin (BTC)", CategoryCrypto, true, "global"},
	CryptoETH:     {CryptoETH, "Ethereum (ETH)", "Ethereum (ETH)", CategoryCrypto, true, "global"},
	CryptoXRP:     {CryptoXRP, "Ripple (XRP)", "Ripple (XRP)", CategoryCrypto, true, "global"},
	CryptoBitkub:  {CryptoBitkub, "Bitkub Token", "Bitkub Token", CategoryCrypto, true, "thailand"},
	CryptoBinance: {CryptoBinance, "Binance Coin (BNB)", "Binance Coin (BNB)", CategoryCrypto, true, "global"},
	CryptoSolana:  {CryptoSolana, "Solana (SOL)", "Solana (SOL)", CategoryCrypto, true, "global"},
	CryptoUSDT:    {CryptoUSDT, "Tether (USDT)", "Tether (USDT)", CategoryCrypto, true, "global"},
	CryptoUSDC:    {CryptoUSDC, "USD Coin (USDC)", "USD Coin (USDC)", CategoryCrypto, true, "global"},
	CryptoCustom:  {CryptoCustom, "Custom Crypto Token", "Custom Crypto Token", CategoryCrypto, true, "global"},

	PointsThe1:       {PointsThe1, "The 1 Card Points", "The 1 Card Points", CategoryPoints, true, "thailand"},
	PointsBlueCard:   {PointsBlueCard, "BlueCard Points", "BlueCard Points", CategoryPoints, true, "thailand"},
	PointsCreditCard: {PointsCreditCard, "Credit Card Points", "Credit Card Points", CategoryPoints, true, "global"},
	PointsAirline:    {PointsAirline, "Airline Miles", "Airline Miles", CategoryPoints, true, "global"},
	PointsHotel:      {PointsHotel, "Hotel Points", "Hotel Points", CategoryPoints, true, "global"},
	PointsCustom:     {PointsCustom, "Custom Points", "Custom Points", CategoryPoints, true, "global"},

	Voucher:  {Voucher, "Voucher", "Voucher", CategoryVoucher, false, "global"},
	GiftCard: {GiftCard, "Gift Card", "Gift Card", CategoryVoucher, false, "global"},
	Coupon:   {Coupon, "Coupon", "Coupon", CategoryVoucher, false, "global"},

	BNPLAtome:        {BNPLAtome, "Atome", "Atome", CategoryBNPL, true, "asia"},
	BNPLSplit:        {BNPLSplit, "Split", "Split", CategoryBNPL, true, "thailand"},
	BNPLGrabPayLater: {BNPLGrabPayLater, "Grab PayLater", "Grab PayLater", CategoryBNPL, true, "asia"},
	BNPLAffirm:       {BNPLAffirm, "Affirm", "Affirm", CategoryBNPL, true, "usa"},
	BNPLKlarna:       {BNPLKlarna, "Klarna", "Klarna", CategoryBNPL, true, "global"},
	BNPLAfterpay:     {BNPLAfterpay, "Afterpay", "Afterpay", CategoryBNPL, true, "global"},

	Custom: {Custom, "Custom Payment", "Custom Payment", CategoryCustom, true, "global"},
}

// Lookup returns the metadata for m.
func Lookup(m Method) (Info, bool) {
	info, ok := catalog[m]
	return info, ok
}

// Valid reports whether m is a known tender.
func Valid(m Method) bool {
	_, ok := catalog[m]
	return ok
}

// All returns the full catalog in stable display order.
func All() []Info {
	out := make([]Info, 0, len(ordered))
	for _, m := range ordered {
		out = append(out, catalog[m])
	}
	return out
}

// String implements fmt.Stringer.
func (m Method) String() string { return string(m) }

// Category returns the tender's category, or CategoryCustom for unknown tags.
func (m Method) CategoryOf() Category {
	if info, ok := catalog[m]; ok {
		return info.Category
	}
	return CategoryCustom
}

// RequiresGateway reports whether the tender needs a gateway round-trip.
func (m Method) RequiresGateway() bool {
	info, ok := catalog[m]
	return ok && info.RequiresGateway
}

// IsCrypto reports whether the tender settles on a blockchain.
func (m Method) IsCrypto() bool {
	return m.CategoryOf() == CategoryCrypto
}
