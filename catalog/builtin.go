package catalog

// Block keys of the built-in catalog
const (
	BlockFirstMessage      = "first_message"
	BlockIncomingMessage   = "incoming_Message"
	BlockMessageFilter     = "message_filter"
	BlockMessageCount      = "message_count"
	BlockPlatform          = "platform"
	BlockIntegratedNumber  = "integrated_number"
	BlockCustomerNumber    = "customer_number"
	BlockConversationStart = "conversation_started"
	BlockSendMessage       = "send_message"
	BlockAIReply           = "ai_reply"
	BlockSendEmail         = "send_email"
	BlockDelay             = "delay"
)

// Remote candidate sources, relative to the configured base URL
const (
	SourceIntegratedNumbers = "/api/integrations/whatsapp/numbers"
)

// Delay units accepted by the delay block
const (
	UnitSeconds = "seconds"
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
)

var (
	textOperators   = []Operator{OpIs, OpIsNot, OpContains}
	enumOperators   = []Operator{OpIs, OpIsNot}
	numberOperators = []Operator{OpIs, OpIsNot, OpGte, OpLte}
	dateOperators   = []Operator{OpGte, OpLte}
	matchableKinds  = []NodeKind{KindTrigger, KindCondition}
	conditionOnly   = []NodeKind{KindCondition}
	actionOnly      = []NodeKind{KindAction}
	triggerOnly     = []NodeKind{KindTrigger}
)

// BuiltinEntries returns the block types shipped with the product
func BuiltinEntries() []Entry {
	return []Entry{
		{
			Key:          BlockFirstMessage,
			Label:        "First message",
			EnabledKinds: triggerOnly,
			Shape:        SimpleShape{},
			EventMatch:   "MessageCount == 1",
		},
		{
			Key:          BlockIncomingMessage,
			Label:        "Incoming message",
			EnabledKinds: triggerOnly,
			Shape:        SimpleShape{},
			EventMatch:   "MessageCount > 1",
		},
		{
			Key:          BlockMessageFilter,
			Label:        "Message filter",
			EnabledKinds: matchableKinds,
			Shape: CompositeShape{SubFields: []FieldSpec{
				{
					Key:       "text",
					Label:     "Message text",
					Format:    FormatInput,
					ValueType: ValueText,
					Operators: textOperators,
					Attribute: AttrText,
				},
				{
					Key:       "type",
					Label:     "Message type",
					Format:    FormatStatic,
					ValueType: ValueSelect,
					Operators: enumOperators,
					Attribute: AttrMessageType,
					StaticOptions: []Option{
						{Value: "text", Label: "Text"},
						{Value: "image", Label: "Image"},
						{Value: "audio", Label: "Audio"},
						{Value: "video", Label: "Video"},
						{Value: "document", Label: "Document"},
					},
				},
			}},
		},
		{
			Key:          BlockMessageCount,
			Label:        "Message count",
			EnabledKinds: matchableKinds,
			Shape: SimpleShape{Fields: []FieldSpec{
				{
					Key:       "count",
					Label:     "Messages in conversation",
					Format:    FormatInput,
					ValueType: ValueNumber,
					Operators: numberOperators,
					Attribute: AttrConversationMessageCount,
				},
			}},
		},
		{
			Key:          BlockPlatform,
			Label:        "Platform",
			EnabledKinds: matchableKinds,
			Shape: SimpleShape{Fields: []FieldSpec{
				{
					Key:       "platform",
					Label:     "Platform",
					Format:    FormatStatic,
					ValueType: ValueSelect,
					Operators: enumOperators,
					Attribute: AttrPlatform,
					StaticOptions: []Option{
						{Value: "whatsapp", Label: "WhatsApp"},
					},
				},
			}},
		},
		{
			Key:          BlockIntegratedNumber,
			Label:        "Integrated number",
			EnabledKinds: matchableKinds,
			Shape: SimpleShape{Fields: []FieldSpec{
				{
					Key:          "number",
					Label:        "Business number",
					Format:       FormatCallingAPI,
					ValueType:    ValueSelect,
					Operators:    enumOperators,
					Attribute:    AttrIntegratedPhoneNumber,
					RemoteSource: SourceIntegratedNumbers,
				},
			}},
		},
		{
			Key:          BlockCustomerNumber,
			Label:        "Customer number",
			EnabledKinds: conditionOnly,
			Shape: SimpleShape{Fields: []FieldSpec{
				{
					Key:       "number",
					Label:     "Customer phone number",
					Format:    FormatInput,
					ValueType: ValueText,
					Operators: textOperators,
					Attribute: AttrCustomerPhoneNumber,
				},
			}},
		},
		{
			Key:          BlockConversationStart,
			Label:        "Conversation started",
			EnabledKinds: conditionOnly,
			Shape: SimpleShape{Fields: []FieldSpec{
				{
					Key:       "date",
					Label:     "Conversation start date",
					Format:    FormatInput,
					ValueType: ValueDate,
					Operators: dateOperators,
					Attribute: AttrConversationStartedAt,
				},
			}},
		},
		{
			Key:          BlockSendMessage,
			Label:        "Send message",
			EnabledKinds: actionOnly,
			Shape: SimpleShape{Fields: []FieldSpec{
				{Key: "text", Label: "Message", Format: FormatInput, ValueType: ValueTextarea},
				{Key: "files", Label: "Attachments", Format: FormatInput, ValueType: ValueMultifile},
			}},
		},
		{
			Key:          BlockAIReply,
			Label:        "AI auto-reply",
			EnabledKinds: actionOnly,
			Shape: SimpleShape{Fields: []FieldSpec{
				{Key: "instructions", Label: "Extra instructions", Format: FormatAuto, ValueType: ValueTextarea},
			}},
		},
		{
			Key:          BlockSendEmail,
			Label:        "Send email",
			EnabledKinds: actionOnly,
			Shape: SimpleShape{Fields: []FieldSpec{
				{Key: "to", Label: "To", Format: FormatInput, ValueType: ValueText},
				{Key: "subject", Label: "Subject", Format: FormatInput, ValueType: ValueText},
				{Key: "body", Label: "Body", Format: FormatInput, ValueType: ValueTextarea},
			}},
		},
		{
			Key:          BlockDelay,
			Label:        "Delay",
			EnabledKinds: []NodeKind{KindDelay},
			Shape: SimpleShape{Fields: []FieldSpec{
				{Key: "amount", Label: "Wait for", Format: FormatInput, ValueType: ValueNumber},
				{
					Key:       "unit",
					Label:     "Unit",
					Format:    FormatStatic,
					ValueType: ValueSelect,
					StaticOptions: []Option{
						{Value: UnitSeconds, Label: "Seconds"},
						{Value: UnitMinutes, Label: "Minutes"},
						{Value: UnitHours, Label: "Hours"},
						{Value: UnitDays, Label: "Days"},
					},
				},
			}},
		},
	}
}

// Default returns the built-in catalog
func Default() *Registry {
	return MustRegistry(BuiltinEntries()...)
}
