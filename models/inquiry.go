package models

// InquiryContext selects the persona, canned table and knowledge base for a request
type InquiryContext string

const (
	ContextCustomer  InquiryContext = "customer"
	ContextAssistant InquiryContext = "assistant"
	ContextAdmin     InquiryContext = "admin"
)

// ParseInquiryContext maps a raw value to a context, defaulting to customer
func ParseInquiryContext(s string) InquiryContext {
	switch InquiryContext(s) {
	case ContextAssistant:
		return ContextAssistant
	case ContextAdmin:
		return ContextAdmin
	default:
		return ContextCustomer
	}
}

// IntentCategory is the coarse purpose of an inbound message
type IntentCategory string

const (
	IntentPrice        IntentCategory = "price"
	IntentAvailability IntentCategory = "availability"
	IntentShipping     IntentCategory = "shipping"
	IntentProduct      IntentCategory = "product"
	IntentGeneral      IntentCategory = "general"
)

// ReplySource records which tier of the pipeline produced a reply
type ReplySource string

const (
	SourceTemplate ReplySource = "template"
	SourceWelcome  ReplySource = "welcome"
	SourceAI       ReplySource = "ai"
	SourceCanned   ReplySource = "canned"
)

// VariableMap maps placeholder names to their values for {key} substitution
type VariableMap map[string]string

// ServiceCredential is the stored access token and connectivity status of one external service
type ServiceCredential struct {
	Service      string `bson:"service_name" json:"service_name"`
	AccessToken  string `bson:"access_token" json:"-"`
	RefreshToken string `bson:"refresh_token,omitempty" json:"-"`
	Status       bool   `bson:"status" json:"status"`
}

// Service names used by the credential store
const (
	ServiceFacebook    = "facebook"
	ServiceWhatsApp    = "whatsapp"
	ServiceGoogleSheet = "googlesheet"
	ServiceOpenAI      = "openai"
	ServiceDeepSeek    = "deepseek"
)

// AllServices lists every service the settings collection is seeded with
var AllServices = []string{ServiceFacebook, ServiceWhatsApp, ServiceGoogleSheet, ServiceOpenAI, ServiceDeepSeek}
