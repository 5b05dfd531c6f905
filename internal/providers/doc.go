// Package providers implements the client for the Gemini generateContent API
// used to produce explanations.
//
// Google (Gemini) is the only supported provider; "google" and "gemini" are
// accepted as its name. Transport failures are retried with exponential
// back-off through [Retry]. A request that reaches the provider is never
// retried: error responses are classified into an [LLMError] kind and
// returned.
//
// Responses arrive in several shapes. The candidate content may be an object
// or a list, and it may be missing when the model hit its output limit, in
// which case [TokenLimitMessage] is returned as the text.
//
// HTTP clients are injected through [Settings] so that tests can redirect
// calls to local httptest servers without making live API requests.
//
// Use [New] to obtain a Generator from [Settings].
package providers
