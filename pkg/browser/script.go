package browser

import (
	"context"
	"fmt"

	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
)

// scriptWrapper runs user code as the body of an async function and reports
// the outcome as {success, value}. Error objects are flattened so that their
// name and message survive serialisation.
const scriptWrapper = `async () => {
	try {
		const value = await (async () => { %s })();
		return { success: true, value: value === undefined ? null : value };
	} catch (err) {
		const value = err instanceof Error ? { name: err.name, message: err.message } : err;
		return { success: false, value: value === undefined ? null : value };
	}
}`

// ExecuteScript runs code in the page as the body of an async function and
// resolves to its return value. A throw or rejection in the page fails with
// a *ScriptError carrying the thrown value.
func (s *Session) ExecuteScript(code string) *future.Future[gson.JSON] {
	return future.Go(func() (gson.JSON, error) {
		var res gson.JSON
		err := s.call("session.execute_script", func(ctx context.Context, h DriverSession) (err error) {
			res, err = h.Execute(ctx, fmt.Sprintf(scriptWrapper, code))
			return err
		})
		if err != nil {
			return gson.JSON{}, err
		}
		if !res.Get("success").Bool() {
			return gson.JSON{}, &ScriptError{Value: res.Get("value")}
		}
		return res.Get("value"), nil
	})
}

// jsString encodes v as a JavaScript string literal.
func jsString(v string) string {
	return gson.New(v).JSON("", "")
}

// ClearStorage empties both localStorage and sessionStorage.
func (s *Session) ClearStorage() *future.Future[future.Void] {
	return s.exec(`sessionStorage.clear(); localStorage.clear();`)
}

// ReadLocalStorage reads key from localStorage. A missing key reads as "".
func (s *Session) ReadLocalStorage(key string) *future.Future[string] {
	return s.readStorage("localStorage", key)
}

// WriteLocalStorage sets key to value in localStorage.
func (s *Session) WriteLocalStorage(key, value string) *future.Future[future.Void] {
	return s.exec(fmt.Sprintf(`localStorage.setItem(%s, %s);`, jsString(key), jsString(value)))
}

// ReadSessionStorage reads key from sessionStorage. A missing key reads as "".
func (s *Session) ReadSessionStorage(key string) *future.Future[string] {
	return s.readStorage("sessionStorage", key)
}

// WriteSessionStorage sets key to value in sessionStorage.
func (s *Session) WriteSessionStorage(key, value string) *future.Future[future.Void] {
	return s.exec(fmt.Sprintf(`sessionStorage.setItem(%s, %s);`, jsString(key), jsString(value)))
}

func (s *Session) readStorage(area, key string) *future.Future[string] {
	code := fmt.Sprintf(`return %s.getItem(%s);`, area, jsString(key))
	return future.Then(s.ExecuteScript(code), func(v gson.JSON) (string, error) {
		if v.Nil() {
			return "", nil
		}
		return v.Str(), nil
	})
}

func (s *Session) exec(code string) *future.Future[future.Void] {
	return future.Then(s.ExecuteScript(code), func(gson.JSON) (future.Void, error) {
		return future.Void{}, nil
	})
}
