package attributes

// Semantic convention attribute keys. Where the conventions renamed a key the
// current name is listed first and the legacy name second.
const (
	HTTPRequestMethod       = "http.request.method"
	HTTPMethod              = "http.method"
	URLFull                 = "url.full"
	HTTPURL                 = "http.url"
	URLPath                 = "url.path"
	HTTPTarget              = "http.target"
	URLScheme               = "url.scheme"
	HTTPScheme              = "http.scheme"
	HTTPRoute               = "http.route"
	HTTPResponseStatusCode  = "http.response.status_code"
	HTTPStatusCode          = "http.status_code"
	ServerAddress           = "server.address"
	HTTPHost                = "http.host"
	ServerPort              = "server.port"
	NetHostPort             = "net.host.port"
	ClientAddress           = "client.address"
	HTTPClientIP            = "http.client_ip"
	MicrosoftClientIP       = "microsoft.client.ip"
	UserAgentOriginal       = "user_agent.original"
	HTTPUserAgent           = "http.user_agent"
	UserAgentSyntheticType  = "user_agent.synthetic.type"
	PeerService             = "peer.service"
	NetPeerName             = "net.peer.name"
	NetPeerIP               = "net.peer.ip"
	NetPeerPort             = "net.peer.port"
	NetworkPeerAddress      = "network.peer.address"
	NetworkPeerPort         = "network.peer.port"
	EnduserID               = "enduser.id"
	EnduserPseudoID         = "enduser.pseudo.id"
	DBSystem                = "db.system"
	DBSystemName            = "db.system.name"
	DBStatement             = "db.statement"
	DBQueryText             = "db.query.text"
	DBOperation             = "db.operation"
	DBOperationName         = "db.operation.name"
	DBName                  = "db.name"
	DBNamespace             = "db.namespace"
	RPCSystem               = "rpc.system"
	RPCGRPCStatusCode       = "rpc.grpc.status_code"
	MessagingSystem         = "messaging.system"
	MessagingDestination    = "messaging.destination"
	MessagingDestinationNew = "messaging.destination.name"
	AzureNamespace          = "az.namespace"
	AzureNamespaceLegacy    = "microsoft.namespace"
	ExceptionType           = "exception.type"
	ExceptionMessage        = "exception.message"
	ExceptionStacktrace     = "exception.stacktrace"
)

// Resource attribute keys.
const (
	ServiceName       = "service.name"
	ServiceNamespace  = "service.namespace"
	ServiceInstanceID = "service.instance.id"
	HostName          = "host.name"
)

// Key families for lookups that accept either the current or the legacy key.
var (
	HTTPMethodKeys     = []string{HTTPRequestMethod, HTTPMethod}
	URLFullKeys        = []string{URLFull, HTTPURL}
	URLPathKeys        = []string{URLPath, HTTPTarget}
	URLSchemeKeys      = []string{URLScheme, HTTPScheme}
	HTTPStatusKeys     = []string{HTTPResponseStatusCode, HTTPStatusCode}
	HostKeys           = []string{ServerAddress, HTTPHost}
	HostPortKeys       = []string{ServerPort, NetHostPort}
	ClientIPKeys       = []string{MicrosoftClientIP, ClientAddress, HTTPClientIP}
	UserAgentKeys      = []string{UserAgentOriginal, HTTPUserAgent}
	PeerAddressKeys    = []string{NetPeerName, NetPeerIP, NetworkPeerAddress}
	PeerPortKeys       = []string{NetPeerPort, NetworkPeerPort}
	DBSystemKeys       = []string{DBSystem, DBSystemName}
	DBStatementKeys    = []string{DBStatement, DBQueryText}
	DBOperationKeys    = []string{DBOperation, DBOperationName}
	DBNameKeys         = []string{DBName, DBNamespace}
	MessagingDestKeys  = []string{MessagingDestination, MessagingDestinationNew}
	AzureNamespaceKeys = []string{AzureNamespace, AzureNamespaceLegacy}

	// HTTPKeys marks a span as HTTP when any of them is present.
	HTTPKeys = []string{HTTPRequestMethod, HTTPMethod, URLFull, HTTPURL, HTTPResponseStatusCode, HTTPStatusCode, HTTPRoute}
)
