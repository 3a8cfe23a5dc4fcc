package token

// MaxNameLength caps the stored display name. Names are derived from
// user agents and can be arbitrarily long; anything beyond the cap is
// truncated with an ellipsis marker to fit storage.
const MaxNameLength = 120

const nameEllipsis = "…"

// Kind classifies a token's lifecycle class
type Kind int

const (
	// KindTemporary tokens back browser sessions and are swept by the
	// session or remember-me retention window.
	KindTemporary Kind = iota

	// KindPermanent tokens back device logins and app passwords
	KindPermanent

	// KindWipe tokens have been flagged for remote device wipe and
	// follow the wipe protocol instead of normal session use.
	KindWipe
)

func (k Kind) String() string {
	switch k {
	case KindTemporary:
		return "temporary"
	case KindPermanent:
		return "permanent"
	case KindWipe:
		return "wipe"
	default:
		return "unknown"
	}
}

// Remember flags whether a temporary token outlives the normal
// session lifetime.
type Remember int

const (
	DoNotRemember Remember = iota
	RememberMe
)

// RememberAny matches both remember states in bulk store predicates
const RememberAny Remember = -1

func (r Remember) String() string {
	switch r {
	case RememberMe:
		return "remember"
	case DoNotRemember:
		return "do-not-remember"
	default:
		return "any"
	}
}

// Scope is a map of named booleans restricting what a token may do
type Scope map[string]bool

// DefaultScope is the scope assigned to newly generated tokens
func DefaultScope() Scope {
	return Scope{"filesystem": true}
}

// Token is the read surface common to every token variant
type Token interface {
	GetID() string
	GetUID() string
	GetLoginName() string
	GetName() string
	GetKind() Kind
	GetRemember() Remember
	GetLastActivity() int64
	GetLastCheck() int64
	GetExpires() *int64
	GetScope() Scope
}

// PasswordStorer is the capability of carrying an encrypted login
// password. Operations needing it check for this interface at the
// boundary and reject other variants with ErrInvalidToken.
type PasswordStorer interface {
	Token
	GetPassword() string
	SetPassword(encrypted string)
	IsPasswordInvalid() bool
	SetPasswordInvalid(invalid bool)
}

// Wipeable is the capability of being flagged for remote device wipe
type Wipeable interface {
	Token
	Wipe()
}

// KeyPaired is the capability of carrying an asymmetric key pair for
// password sealing and credential rotation.
type KeyPaired interface {
	Token
	GetPublicKey() string
	GetPrivateKey() string
	SetPrivateKey(encrypted string)
	GetVersion() int
}

// CurrentVersion is the key-format version written for new tokens
const CurrentVersion = 2

// DeviceToken is the fully capable token variant: it stores an
// encrypted password, carries a key pair and can be wiped. The raw
// bearer secret is never part of this record; Hash is the salted hash
// of it and PrivateKey is encrypted under it.
type DeviceToken struct {
	ID              string   `json:"id"`
	UID             string   `json:"uid"`
	LoginName       string   `json:"login_name"`
	Password        string   `json:"password,omitempty"`
	Name            string   `json:"name"`
	Hash            string   `json:"hash"`
	Kind            Kind     `json:"kind"`
	Remember        Remember `json:"remember"`
	LastActivity    int64    `json:"last_activity"`
	LastCheck       int64    `json:"last_check"`
	Expires         *int64   `json:"expires,omitempty"`
	PasswordInvalid bool     `json:"password_invalid"`
	Scope           Scope    `json:"scope"`
	PublicKey       string   `json:"public_key"`
	PrivateKey      string   `json:"private_key"`
	Version         int      `json:"version"`
}

var (
	_ Token          = (*DeviceToken)(nil)
	_ PasswordStorer = (*DeviceToken)(nil)
	_ Wipeable       = (*DeviceToken)(nil)
	_ KeyPaired      = (*DeviceToken)(nil)
)

func (t *DeviceToken) GetID() string          { return t.ID }
func (t *DeviceToken) GetUID() string         { return t.UID }
func (t *DeviceToken) GetLoginName() string   { return t.LoginName }
func (t *DeviceToken) GetName() string        { return t.Name }
func (t *DeviceToken) GetKind() Kind          { return t.Kind }
func (t *DeviceToken) GetRemember() Remember  { return t.Remember }
func (t *DeviceToken) GetLastActivity() int64 { return t.LastActivity }
func (t *DeviceToken) GetLastCheck() int64    { return t.LastCheck }
func (t *DeviceToken) GetExpires() *int64     { return t.Expires }

func (t *DeviceToken) GetScope() Scope {
	if t.Scope == nil {
		return DefaultScope()
	}
	return t.Scope
}

func (t *DeviceToken) GetPassword() string          { return t.Password }
func (t *DeviceToken) SetPassword(encrypted string) { t.Password = encrypted }
func (t *DeviceToken) IsPasswordInvalid() bool      { return t.PasswordInvalid }

func (t *DeviceToken) SetPasswordInvalid(invalid bool) { t.PasswordInvalid = invalid }

// Wipe flags the token for remote wipe. The flag is the token kind
// itself so wipe tokens fall under their own retention window.
func (t *DeviceToken) Wipe() { t.Kind = KindWipe }

func (t *DeviceToken) GetPublicKey() string           { return t.PublicKey }
func (t *DeviceToken) GetPrivateKey() string          { return t.PrivateKey }
func (t *DeviceToken) SetPrivateKey(encrypted string) { t.PrivateKey = encrypted }
func (t *DeviceToken) GetVersion() int                { return t.Version }

// TruncateName caps a display name at MaxNameLength visible characters
func TruncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxNameLength {
		return name
	}
	return string(runes[:MaxNameLength]) + nameEllipsis
}
