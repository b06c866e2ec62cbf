package infra

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// toPulumi converts nested Go values into Pulumi inputs for Helm values.
// Values that already are inputs, such as generated secrets, pass through.
// Nil map entries are dropped.
func toPulumi(v interface{}) pulumi.Input {
	switch val := v.(type) {
	case pulumi.Input:
		return val
	case map[string]interface{}:
		m := pulumi.Map{}
		for k, item := range val {
			if item == nil {
				continue
			}
			m[k] = toPulumi(item)
		}
		return m
	case []interface{}:
		arr := make(pulumi.Array, 0, len(val))
		for _, item := range val {
			arr = append(arr, toPulumi(item))
		}
		return arr
	case []string:
		return pulumi.ToStringArray(val)
	case string:
		return pulumi.String(val)
	case bool:
		return pulumi.Bool(val)
	case int:
		return pulumi.Int(val)
	case float64:
		return pulumi.Float64(val)
	default:
		panic(fmt.Sprintf("unsupported helm value type %T", v))
	}
}

// helmValues converts a values tree into the map Release expects
func helmValues(values map[string]interface{}) pulumi.Map {
	return toPulumi(values).(pulumi.Map)
}
