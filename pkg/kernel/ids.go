package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type WorkflowID string

func NewWorkflowID(id string) WorkflowID { return WorkflowID(id) }
func (r WorkflowID) String() string      { return string(r) }
func (r WorkflowID) IsEmpty() bool       { return string(r) == "" }

type ConversationID string

func NewConversationID(id string) ConversationID { return ConversationID(id) }
func (r ConversationID) String() string          { return string(r) }
func (r ConversationID) IsEmpty() bool           { return string(r) == "" }

type ContinuationID string

func NewContinuationID(id string) ContinuationID { return ContinuationID(id) }
func (r ContinuationID) String() string          { return string(r) }
func (r ContinuationID) IsEmpty() bool           { return string(r) == "" }
