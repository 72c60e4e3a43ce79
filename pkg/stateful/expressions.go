/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: expressions.go
Description: OpenAPI runtime-expression evaluation against a concrete step's
request/response pair. Every outcome is a value: a pointer with no target yields
Unresolvable, a malformed expression or undecodable body yields a failed slot.
Evaluation never panics and never aborts a scenario.
*/

package stateful

import (
	"fmt"
	"strings"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/kleascm/akaylee-explorer/pkg/utils"
)

// EvaluateExpression resolves one runtime expression against the parent
// step's request/response pair. Supported forms:
//
//	$statusCode
//	$method
//	$url
//	$request.path.{name} | $request.query.{name} | $request.header.{name}
//	$request.body#/json/pointer
//	$response.header.{name}
//	$response.body#/json/pointer
//
// Anything not starting with "$" is treated as a literal constant.
func EvaluateExpression(expr string, parentCase *interfaces.Case, parentResponse *interfaces.Response) interfaces.ExtractedParam {
	if !strings.HasPrefix(expr, "$") {
		return interfaces.ResolvedParam(expr, expr)
	}

	switch {
	case expr == "$statusCode":
		if parentResponse == nil {
			return interfaces.UnresolvableParam(expr)
		}
		return interfaces.ResolvedParam(expr, parentResponse.StatusCode)

	case expr == "$method":
		if parentCase == nil {
			return interfaces.UnresolvableParam(expr)
		}
		return interfaces.ResolvedParam(expr, parentCase.Method)

	case expr == "$url":
		if parentCase == nil {
			return interfaces.UnresolvableParam(expr)
		}
		return interfaces.ResolvedParam(expr, parentCase.Path)

	case strings.HasPrefix(expr, "$request."):
		return evaluateRequest(expr, parentCase)

	case strings.HasPrefix(expr, "$response."):
		return evaluateResponse(expr, parentResponse)

	default:
		return interfaces.FailedParam(expr, fmt.Errorf("unsupported runtime expression %q", expr))
	}
}

func evaluateRequest(expr string, parentCase *interfaces.Case) interfaces.ExtractedParam {
	if parentCase == nil {
		return interfaces.UnresolvableParam(expr)
	}
	rest := strings.TrimPrefix(expr, "$request.")

	if strings.HasPrefix(rest, "body") {
		pointer, err := bodyPointer(rest)
		if err != nil {
			return interfaces.FailedParam(expr, err)
		}
		return resolveBody(expr, parentCase.Body, nil, pointer)
	}

	source, name, ok := strings.Cut(rest, ".")
	if !ok || name == "" {
		return interfaces.FailedParam(expr, fmt.Errorf("malformed request expression %q", expr))
	}
	var value string
	var found bool
	switch source {
	case "path":
		value, found = parentCase.PathParams[name]
	case "query":
		value, found = parentCase.Query[name]
	case "header":
		value, found = parentCase.Headers[name]
	default:
		return interfaces.FailedParam(expr, fmt.Errorf("unknown request source %q in %q", source, expr))
	}
	if !found {
		return interfaces.UnresolvableParam(expr)
	}
	return interfaces.ResolvedParam(expr, value)
}

func evaluateResponse(expr string, parentResponse *interfaces.Response) interfaces.ExtractedParam {
	if parentResponse == nil {
		return interfaces.UnresolvableParam(expr)
	}
	rest := strings.TrimPrefix(expr, "$response.")

	if strings.HasPrefix(rest, "body") {
		pointer, err := bodyPointer(rest)
		if err != nil {
			return interfaces.FailedParam(expr, err)
		}
		decoded, err := parentResponse.Decoded()
		if err != nil {
			return interfaces.FailedParam(expr, fmt.Errorf("response body is not valid JSON: %w", err))
		}
		return resolveBody(expr, nil, decoded, pointer)
	}

	if name := strings.TrimPrefix(rest, "header."); name != rest && name != "" {
		value := parentResponse.Headers.Get(name)
		if value == "" {
			return interfaces.UnresolvableParam(expr)
		}
		return interfaces.ResolvedParam(expr, value)
	}
	return interfaces.FailedParam(expr, fmt.Errorf("malformed response expression %q", expr))
}

// bodyPointer splits the "body#/pointer" suffix of an expression. A bare
// "body" addresses the whole document.
func bodyPointer(rest string) (string, error) {
	if rest == "body" {
		return "", nil
	}
	pointer := strings.TrimPrefix(rest, "body#")
	if pointer == rest {
		return "", fmt.Errorf("malformed body fragment %q", rest)
	}
	if pointer != "" && !strings.HasPrefix(pointer, "/") {
		return "", fmt.Errorf("json pointer must start with '/': %q", pointer)
	}
	return pointer, nil
}

// resolveBody navigates a decoded body by pointer. When the raw request
// body is passed instead of a decoded response, it is used as-is: request
// bodies are already native values.
func resolveBody(expr string, requestBody interface{}, decoded interface{}, pointer string) interfaces.ExtractedParam {
	doc := decoded
	if requestBody != nil {
		doc = requestBody
	}
	value, found := utils.ResolvePointer(doc, pointer)
	if !found {
		return interfaces.UnresolvableParam(expr)
	}
	return interfaces.ResolvedParam(expr, value)
}

// EvaluateLink instantiates a transition from a link definition against the
// parent step. Qualified parameter keys ("path.userId") route to their
// location; unqualified keys resolve against the target operation's declared
// parameters, with path as the default for undeclared or ambiguous names.
func EvaluateLink(link *interfaces.LinkDefinition, target *interfaces.APIOperation, parentCase *interfaces.Case, parentResponse *interfaces.Response) (map[interfaces.ParameterLocation]map[string]interfaces.ExtractedParam, map[string]interfaces.ExtractedParam) {
	parameters := make(map[interfaces.ParameterLocation]map[string]interfaces.ExtractedParam)
	for key, expr := range link.Parameters {
		location, name := splitParameterKey(target, key)
		if parameters[location] == nil {
			parameters[location] = make(map[string]interfaces.ExtractedParam)
		}
		parameters[location][name] = EvaluateExpression(expr, parentCase, parentResponse)
	}

	var body map[string]interfaces.ExtractedParam
	if len(link.RequestBody) > 0 {
		body = make(map[string]interfaces.ExtractedParam, len(link.RequestBody))
		for field, expr := range link.RequestBody {
			body[field] = EvaluateExpression(expr, parentCase, parentResponse)
		}
	}
	return parameters, body
}

func splitParameterKey(target *interfaces.APIOperation, key string) (interfaces.ParameterLocation, string) {
	prefix, name, ok := strings.Cut(key, ".")
	if ok {
		switch interfaces.ParameterLocation(prefix) {
		case interfaces.LocationPath, interfaces.LocationQuery, interfaces.LocationHeader, interfaces.LocationCookie, interfaces.LocationBody:
			return interfaces.ParameterLocation(prefix), name
		}
	}
	return declaredLocation(target, key), key
}

// declaredLocation resolves an unqualified link parameter name to the
// location the consumer operation declares it in. Names that are undeclared
// or declared in more than one location fall back to path.
func declaredLocation(target *interfaces.APIOperation, name string) interfaces.ParameterLocation {
	location := interfaces.LocationPath
	matches := 0
	if target != nil {
		for _, param := range target.Parameters {
			if param.Name == name {
				location = param.Location
				matches++
			}
		}
	}
	if matches != 1 {
		return interfaces.LocationPath
	}
	return location
}
