package middlewares

// gin context key holding the request id
const CtxRequestID = "request_id"
